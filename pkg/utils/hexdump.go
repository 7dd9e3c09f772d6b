package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultBytesPerLine is the hex editor row width
const DefaultBytesPerLine = 16

// HexDumpOptions controls HexDump rendering
type HexDumpOptions struct {
	BytesPerLine int // 0 means DefaultBytesPerLine
	MaxRows      int // 0 means no limit
}

// WriteHexDump renders data like a hex editor view:
//
//	10000000: 00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F  |................|
//
// Addresses start at base. Short last rows are padded so the ASCII column lines up.
func WriteHexDump(w io.Writer, data []byte, base uint64, opts HexDumpOptions) error {
	perLine := opts.BytesPerLine
	if perLine <= 0 {
		perLine = DefaultBytesPerLine
	}
	hexWidth := perLine*3 - 1

	bw := bufio.NewWriter(w)
	var hexPart, asciiPart strings.Builder
	rows := 0

	for i := 0; i < len(data); i += perLine {
		if opts.MaxRows > 0 && rows >= opts.MaxRows {
			break
		}
		rows++

		chunk := data[i:min(i+perLine, len(data))]
		hexPart.Reset()
		asciiPart.Reset()
		for j, b := range chunk {
			if j > 0 {
				hexPart.WriteByte(' ')
			}
			fmt.Fprintf(&hexPart, "%02X", b)
			if b >= 32 && b <= 126 {
				asciiPart.WriteByte(b)
			} else {
				asciiPart.WriteByte('.')
			}
		}

		if _, err := fmt.Fprintf(bw, "%08X: %-*s  |%s|\n", base+uint64(i), hexWidth, hexPart.String(), asciiPart.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// HexDump returns WriteHexDump output as a string
func HexDump(data []byte, base uint64, opts HexDumpOptions) string {
	var sb strings.Builder
	_ = WriteHexDump(&sb, data, base, opts)
	return sb.String()
}
