package cmd

import (
	"linkprobe/internal/reporter"
	"linkprobe/internal/transport"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports available on this host",
	Long: `List serial ports with their USB vendor/product IDs where available.
A Raspberry Pi Pico running the stdio USB firmware shows up as 2E8A:000A.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}
		return reporter.RenderPorts(cmd.OutOrStdout(), viper.GetString("output.format"), ports)
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
