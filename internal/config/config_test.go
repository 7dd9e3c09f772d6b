package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Serial.Port = "/dev/ttyACM0"
	return cfg
}

func TestDefaultConfigNeedsPort(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingPort)

	cfg.Serial.Simulate = true
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"zero target", func(c *Config) { c.Transfer.TargetBytes = 0 }, ErrInvalidTargetBytes},
		{"zero chunk", func(c *Config) { c.Transfer.ChunkSize = 0 }, ErrInvalidChunkSize},
		{"empty trigger", func(c *Config) { c.Transfer.Trigger = "" }, ErrInvalidTrigger},
		{"long trigger", func(c *Config) { c.Transfer.Trigger = "GO" }, ErrInvalidTrigger},
		{"zero timeout", func(c *Config) { c.Transfer.ReadTimeout = 0 }, ErrInvalidReadTimeout},
		{"zero baud", func(c *Config) { c.Serial.BaudRate = 0 }, ErrInvalidBaudRate},
		{"bad mode", func(c *Config) { c.Handshake.Mode = "maybe" }, ErrInvalidHandshakeMode},
		{"exact without line", func(c *Config) { c.Handshake.Expected = "" }, ErrMissingExpectedLine},
		{"scan without sentinel", func(c *Config) {
			c.Handshake.Mode = HandshakeScan
			c.Handshake.Sentinel = ""
		}, ErrMissingSentinel},
		{"none needs nothing", func(c *Config) {
			c.Handshake.Mode = HandshakeNone
			c.Handshake.Expected = ""
		}, nil},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, ErrInvalidOutputFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkprobe.yaml")
	content := `
serial:
  port: "COM28"
transfer:
  target_bytes: 512
  chunk_size: 64
  read_timeout: 10s
handshake:
  mode: scan
  sentinel: BEGIN_DATA
output:
  save_path: pico_stream_512.bin
  hexdump: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "COM28", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, uint64(512), cfg.Transfer.TargetBytes)
	assert.Equal(t, 64, cfg.Transfer.ChunkSize)
	assert.Equal(t, 10*time.Second, cfg.Transfer.ReadTimeout)
	assert.Equal(t, byte('G'), cfg.TriggerByte())
	assert.Equal(t, HandshakeScan, cfg.Handshake.Mode)
	assert.Equal(t, "BEGIN_DATA", cfg.Handshake.Sentinel)
	assert.Equal(t, "pico_stream_512.bin", cfg.Output.SavePath)
	assert.True(t, cfg.Output.HexDump)
	assert.Equal(t, uint64(0x10000000), cfg.Output.HexDumpBase)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LINKPROBE_TRANSFER_TARGET_BYTES", "4096")
	t.Setenv("LINKPROBE_SERIAL_SIMULATE", "true")

	v := viper.New()
	v.SetEnvPrefix("LINKPROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), cfg.Transfer.TargetBytes)
	assert.True(t, cfg.Serial.Simulate)
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("serial.simulate", true)
	v.Set("transfer.chunk_size", 0)

	_, err := Load(v)
	assert.ErrorIs(t, err, ErrInvalidChunkSize)
}
