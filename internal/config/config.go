package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingPort          = errors.New("serial port must be set (or enable serial.simulate)")
	ErrInvalidBaudRate      = errors.New("baud rate must be greater than 0")
	ErrInvalidTargetBytes   = errors.New("target bytes must be greater than 0")
	ErrInvalidChunkSize     = errors.New("chunk size must be greater than 0")
	ErrInvalidTrigger       = errors.New("trigger must be exactly one byte")
	ErrInvalidReadTimeout   = errors.New("read timeout must be greater than 0")
	ErrInvalidHandshakeMode = errors.New("handshake mode must be one of: exact, scan, none")
	ErrMissingExpectedLine  = errors.New("handshake expected line must be set for exact mode")
	ErrMissingSentinel      = errors.New("handshake sentinel must be set for scan mode")
	ErrInvalidOutputFormat  = errors.New("output format must be one of: text, json, yaml")
)

// Handshake modes accepted in configuration.
const (
	HandshakeExact = "exact"
	HandshakeScan  = "scan"
	HandshakeNone  = "none"
)

// Config holds all application configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial" json:"serial"`
	Transfer  TransferConfig  `mapstructure:"transfer" json:"transfer"`
	Handshake HandshakeConfig `mapstructure:"handshake" json:"handshake"`
	Output    OutputConfig    `mapstructure:"output" json:"output"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// SerialConfig selects the link to exercise
type SerialConfig struct {
	Port     string `mapstructure:"port" json:"port"`
	BaudRate int    `mapstructure:"baud_rate" json:"baud_rate"` // USB CDC ignores it but the driver wants one
	Simulate bool   `mapstructure:"simulate" json:"simulate"`   // run against the in-memory device instead of a port
}

// TransferConfig describes one payload transfer
type TransferConfig struct {
	TargetBytes uint64        `mapstructure:"target_bytes" json:"target_bytes"`
	ChunkSize   int           `mapstructure:"chunk_size" json:"chunk_size"`
	Trigger     string        `mapstructure:"trigger" json:"trigger"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	// SettleDelay is slept after opening the port, before buffers are reset.
	SettleDelay time.Duration `mapstructure:"settle_delay" json:"settle_delay"`
}

// HandshakeConfig describes the preamble the device sends before binary data
type HandshakeConfig struct {
	Mode     string `mapstructure:"mode" json:"mode"`
	Expected string `mapstructure:"expected" json:"expected"`
	Sentinel string `mapstructure:"sentinel" json:"sentinel"`
}

// OutputConfig controls what happens with the received payload
type OutputConfig struct {
	SavePath    string `mapstructure:"save_path" json:"save_path"`
	HexDump     bool   `mapstructure:"hexdump" json:"hexdump"`
	HexDumpBase uint64 `mapstructure:"hexdump_base" json:"hexdump_base"`
	HexDumpRows int    `mapstructure:"hexdump_rows" json:"hexdump_rows"`
	Format      string `mapstructure:"format" json:"format"`
	Progress    bool   `mapstructure:"progress" json:"progress"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string        `mapstructure:"level" json:"level"`
	File  LogFileConfig `mapstructure:"file" json:"file"`
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	Path       string `mapstructure:"path" json:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "",
			BaudRate: 115200,
		},
		Transfer: TransferConfig{
			TargetBytes: 1024 * 1024, // 1 MiB
			ChunkSize:   16 * 1024,   // 16 KiB per read
			Trigger:     "G",
			ReadTimeout: 2 * time.Second,
			SettleDelay: 200 * time.Millisecond,
		},
		Handshake: HandshakeConfig{
			Mode:     HandshakeExact,
			Expected: "BEGIN 1MiB",
			Sentinel: "BEGIN_DATA",
		},
		Output: OutputConfig{
			HexDumpBase: 0x10000000,
			Format:      "text",
			Progress:    true,
		},
		Log: LogConfig{
			Level: "info",
			File: LogFileConfig{
				Path:       "linkprobe.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
	}
}

// SetDefaults registers every default from NewDefaultConfig on v so that
// environment variables are picked up for keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("serial.port", d.Serial.Port)
	v.SetDefault("serial.baud_rate", d.Serial.BaudRate)
	v.SetDefault("serial.simulate", d.Serial.Simulate)

	v.SetDefault("transfer.target_bytes", d.Transfer.TargetBytes)
	v.SetDefault("transfer.chunk_size", d.Transfer.ChunkSize)
	v.SetDefault("transfer.trigger", d.Transfer.Trigger)
	v.SetDefault("transfer.read_timeout", d.Transfer.ReadTimeout)
	v.SetDefault("transfer.settle_delay", d.Transfer.SettleDelay)

	v.SetDefault("handshake.mode", d.Handshake.Mode)
	v.SetDefault("handshake.expected", d.Handshake.Expected)
	v.SetDefault("handshake.sentinel", d.Handshake.Sentinel)

	v.SetDefault("output.save_path", d.Output.SavePath)
	v.SetDefault("output.hexdump", d.Output.HexDump)
	v.SetDefault("output.hexdump_base", d.Output.HexDumpBase)
	v.SetDefault("output.hexdump_rows", d.Output.HexDumpRows)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.progress", d.Output.Progress)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file.enabled", d.Log.File.Enabled)
	v.SetDefault("log.file.path", d.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", d.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", d.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", d.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", d.Log.File.Compress)
}

// Load builds a Config from everything v knows about (defaults, file, env, flags)
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if !c.Serial.Simulate && strings.TrimSpace(c.Serial.Port) == "" {
		return ErrMissingPort
	}
	if c.Serial.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	if c.Transfer.TargetBytes == 0 {
		return ErrInvalidTargetBytes
	}
	if c.Transfer.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if len(c.Transfer.Trigger) != 1 {
		return ErrInvalidTrigger
	}
	if c.Transfer.ReadTimeout <= 0 {
		return ErrInvalidReadTimeout
	}

	switch strings.ToLower(c.Handshake.Mode) {
	case HandshakeExact:
		if c.Handshake.Expected == "" {
			return ErrMissingExpectedLine
		}
	case HandshakeScan:
		if c.Handshake.Sentinel == "" {
			return ErrMissingSentinel
		}
	case HandshakeNone:
	default:
		return ErrInvalidHandshakeMode
	}

	switch strings.ToLower(c.Output.Format) {
	case "text", "json", "yaml":
	default:
		return ErrInvalidOutputFormat
	}
	return nil
}

// TriggerByte returns the configured trigger. Only valid after Validate.
func (c *Config) TriggerByte() byte {
	return c.Transfer.Trigger[0]
}
