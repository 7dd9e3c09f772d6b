package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"linkprobe/internal/config"
	"linkprobe/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	exitCode int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkprobe",
	Short: "linkprobe - serial link throughput and integrity checker",
	Long: `linkprobe exercises a serial / USB CDC link to an embedded device.

It sends a single trigger byte, consumes the device's text preamble, reads a
fixed-size binary payload generated as (offset mod 256) and verifies it byte
for byte while measuring throughput.

Usage:
  Verify a device:     linkprobe verify --port /dev/ttyACM0
  List serial ports:   linkprobe ports
  Inspect a raw dump:  linkprobe hexdump pico_dump.bin

Settings are read from $HOME/.linkprobe.yaml, LINKPROBE_* environment
variables and flags, in increasing order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.linkprobe.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("format", "text", "report format (text, json, yaml)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("format"))

	// LINKPROBE_SERIAL_PORT overrides serial.port and so on
	viper.SetEnvPrefix("LINKPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// initConfig reads in config file and ENV variables
func initConfig() error {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logrus.WithError(err).Warn("Could not find home directory")
			return nil
		}

		// Search config in home directory with name ".linkprobe" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".linkprobe")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}
	logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	return nil
}

// loadConfig validates the merged configuration and builds the logger
func loadConfig(stderr io.Writer) (*config.Config, *logrus.Logger, func() error, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// createContext creates a context that cancels on interrupt signals
func createContext(log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Warn("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
