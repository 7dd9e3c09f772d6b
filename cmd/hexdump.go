package cmd

import (
	"fmt"

	"linkprobe/internal/processor"
	"linkprobe/internal/verify"
	"linkprobe/pkg/utils"

	"github.com/spf13/cobra"
)

type HexDumpFlags struct {
	Base   uint64
	Rows   int
	Width  int
	Verify bool
}

var hexDumpFlags HexDumpFlags

// hexdumpCmd represents the hexdump command
var hexdumpCmd = &cobra.Command{
	Use:   "hexdump FILE",
	Short: "Print a saved payload as a hex dump",
	Long: `Print a raw dump saved by 'verify --save' in hex editor layout.
With --verify the dump is also checked against the (offset mod 256) pattern.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := processor.NewFileService()
		data, err := fs.ReadDump(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := utils.WriteHexDump(out, data, hexDumpFlags.Base, utils.HexDumpOptions{
			BytesPerLine: hexDumpFlags.Width,
			MaxRows:      hexDumpFlags.Rows,
		}); err != nil {
			return err
		}

		if hexDumpFlags.Verify {
			result := verify.Verify(data, verify.ModPattern, 0)
			if result.OK() {
				fmt.Fprintf(out, "Pattern OK over %d bytes (%s)\n", result.ByteCount, utils.FormatFileSize(int64(result.ByteCount)))
			} else {
				fmt.Fprintf(out, "Pattern %s\n", result.Mismatch)
				exitCode = 1
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hexdumpCmd)

	hexdumpCmd.Flags().Uint64Var(&hexDumpFlags.Base, "base", 0x10000000, "Address of the first byte")
	hexdumpCmd.Flags().IntVar(&hexDumpFlags.Rows, "rows", 0, "Maximum rows to print (0 = all)")
	hexdumpCmd.Flags().IntVar(&hexDumpFlags.Width, "width", utils.DefaultBytesPerLine, "Bytes per row")
	hexdumpCmd.Flags().BoolVar(&hexDumpFlags.Verify, "verify", false, "Check the dump against the test pattern")
}
