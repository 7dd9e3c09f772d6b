package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"linkprobe/internal/app"
	"linkprobe/internal/config"
	"linkprobe/internal/device"
	"linkprobe/internal/handshake"
	"linkprobe/internal/reporter"
	"linkprobe/internal/transport"
	"linkprobe/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SimulateFlags injects faults into the simulated device
type SimulateFlags struct {
	CorruptAt  int64 // payload offset to corrupt, -1 for none
	StallAfter int64 // payload bytes before the device goes quiet, -1 for never
}

var simulateFlags SimulateFlags

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Trigger the device and verify the streamed test pattern",
	Long: `Run one verification against the device:

1. Open the serial port (8N1) and flush stale bytes
2. Send the trigger byte
3. Consume the text preamble (exact line, scan until sentinel, or none)
4. Read the binary payload in bounded chunks
5. Verify every byte against (offset mod 256) and report throughput

The exit code is 0 only when the full payload arrived and matched.
Use --simulate to run against a built-in device model instead of hardware.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, cancel := createContext(logger)
		defer cancel()

		exitCode = runVerify(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	flags := verifyCmd.Flags()
	flags.StringP("port", "p", "", "Serial port (e.g. /dev/ttyACM0 or COM3)")
	flags.IntP("baud", "b", 115200, "Baud rate (ignored by USB CDC devices)")
	flags.Bool("simulate", false, "Use the built-in simulated device")
	flags.Uint64("size", 1<<20, "Payload size in bytes")
	flags.Int("chunk", 16384, "Maximum bytes per read")
	flags.String("trigger", "G", "Single trigger byte sent to the device")
	flags.Duration("timeout", 2*time.Second, "Per-read timeout")
	flags.Duration("settle", 200*time.Millisecond, "Delay between opening the port and sending the trigger")
	flags.String("mode", "exact", "Handshake mode (exact, scan, none)")
	flags.String("expected", "BEGIN 1MiB", "Preamble line for exact mode")
	flags.String("sentinel", "BEGIN_DATA", "Sentinel line for scan mode")
	flags.StringP("save", "o", "", "Save the received payload to this file")
	flags.Bool("hexdump", false, "Print a hex dump of the received payload")
	flags.Int("hexdump-rows", 0, "Limit the hex dump to this many rows (0 = all)")
	flags.Bool("progress", true, "Show a progress bar")

	flags.Int64Var(&simulateFlags.CorruptAt, "simulate-corrupt-at", -1, "Simulated device corrupts the byte at this offset")
	flags.Int64Var(&simulateFlags.StallAfter, "simulate-stall-after", -1, "Simulated device stops after this many bytes")
	_ = flags.MarkHidden("simulate-corrupt-at")
	_ = flags.MarkHidden("simulate-stall-after")

	// Bind flags to viper so config file and environment can supply them
	viper.BindPFlag("serial.port", flags.Lookup("port"))
	viper.BindPFlag("serial.baud_rate", flags.Lookup("baud"))
	viper.BindPFlag("serial.simulate", flags.Lookup("simulate"))
	viper.BindPFlag("transfer.target_bytes", flags.Lookup("size"))
	viper.BindPFlag("transfer.chunk_size", flags.Lookup("chunk"))
	viper.BindPFlag("transfer.trigger", flags.Lookup("trigger"))
	viper.BindPFlag("transfer.read_timeout", flags.Lookup("timeout"))
	viper.BindPFlag("transfer.settle_delay", flags.Lookup("settle"))
	viper.BindPFlag("handshake.mode", flags.Lookup("mode"))
	viper.BindPFlag("handshake.expected", flags.Lookup("expected"))
	viper.BindPFlag("handshake.sentinel", flags.Lookup("sentinel"))
	viper.BindPFlag("output.save_path", flags.Lookup("save"))
	viper.BindPFlag("output.hexdump", flags.Lookup("hexdump"))
	viper.BindPFlag("output.hexdump_rows", flags.Lookup("hexdump-rows"))
	viper.BindPFlag("output.progress", flags.Lookup("progress"))
}

// runVerify performs one run and reports it, returning the exit code
func runVerify(ctx context.Context, cfg *config.Config, log *logrus.Logger, stdout, stderr io.Writer) int {
	runner := app.NewRunner(newOpener(cfg, simulateFlags, log), log)
	runner.ProgressOut = stderr

	if cfg.Serial.Simulate {
		log.Info("Using simulated device")
	} else {
		log.Infof("Connecting to %s at %d baud", cfg.Serial.Port, cfg.Serial.BaudRate)
	}

	report, err := runner.Run(ctx, app.OptionsFromConfig(cfg))
	if err != nil {
		log.WithError(err).Error("Verification run failed")
	}

	if report != nil && cfg.Output.HexDump {
		fmt.Fprintln(stdout, "--- Hex Dump ---")
		if err := utils.WriteHexDump(stdout, report.Payload, cfg.Output.HexDumpBase, utils.HexDumpOptions{
			MaxRows: cfg.Output.HexDumpRows,
		}); err != nil {
			log.WithError(err).Warn("Failed to write hex dump")
		}
		fmt.Fprintln(stdout, "----------------")
	}

	summary := reporter.NewSummary(report, err)
	if err := reporter.Render(stdout, cfg.Output.Format, summary); err != nil {
		log.WithError(err).Error("Failed to render report")
		return 1
	}
	return summary.ExitCode
}

// newOpener picks the simulated device or the real serial port
func newOpener(cfg *config.Config, sim SimulateFlags, log logrus.FieldLogger) app.Opener {
	if cfg.Serial.Simulate {
		return func(context.Context) (transport.Port, error) {
			return transport.NewLink(newSimulator(cfg, sim)), nil
		}
	}
	return func(context.Context) (transport.Port, error) {
		link, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err != nil {
			return nil, err
		}
		log.WithField("port", cfg.Serial.Port).Debug("Serial port opened")
		return link, nil
	}
}

// newSimulator builds a device that answers the configured handshake
func newSimulator(cfg *config.Config, sim SimulateFlags) *device.Simulator {
	opts := []device.Option{
		device.WithTrigger(cfg.TriggerByte()),
		device.WithMaxChunk(4096),
		device.WithTrailer([]byte("\r\nEND\r\n")),
	}

	switch app.ModeFromConfig(cfg.Handshake).Kind {
	case handshake.KindExactLine:
		opts = append(opts, device.WithPreamble(cfg.Handshake.Expected))
	case handshake.KindScanUntilSentinel:
		opts = append(opts, device.WithPreamble("simulated device ready", cfg.Handshake.Sentinel))
	}

	if sim.CorruptAt >= 0 {
		opts = append(opts, device.WithCorruption(uint64(sim.CorruptAt), 0xFF))
	}
	if sim.StallAfter >= 0 {
		opts = append(opts, device.WithStallAfter(uint64(sim.StallAfter)))
	}
	return device.New(cfg.Transfer.TargetBytes, opts...)
}
