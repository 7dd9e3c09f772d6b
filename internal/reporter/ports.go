package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"linkprobe/internal/transport"

	"gopkg.in/yaml.v3"
)

// RenderPorts writes the serial port listing in the given format
func RenderPorts(w io.Writer, format string, ports []transport.PortInfo) error {
	switch strings.ToLower(format) {
	case "", "text":
		if len(ports) == 0 {
			_, err := fmt.Fprintln(w, "No serial ports found")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tUSB ID\tSERIAL\tPRODUCT")
		for _, p := range ports {
			usbID := "-"
			if p.IsUSB {
				usbID = p.VID + ":" + p.PID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, usbID, dash(p.SerialNumber), dash(p.Product))
		}
		return tw.Flush()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ports)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ports); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
