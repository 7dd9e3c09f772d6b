package reporter

import (
	"bytes"
	"encoding/json"
	"testing"

	"linkprobe/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var picoPorts = []transport.PortInfo{
	{Name: "/dev/ttyACM0", IsUSB: true, VID: "2E8A", PID: "000A", SerialNumber: "E6614C311B", Product: "Pico"},
	{Name: "/dev/ttyS0"},
}

func TestRenderPortsText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderPorts(&out, "text", picoPorts))

	want := "PORT          USB ID     SERIAL      PRODUCT\n" +
		"/dev/ttyACM0  2E8A:000A  E6614C311B  Pico\n" +
		"/dev/ttyS0    -          -           -\n"
	assert.Equal(t, want, out.String())
}

func TestRenderPortsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderPorts(&out, "text", nil))
	assert.Equal(t, "No serial ports found\n", out.String())
}

func TestRenderPortsJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderPorts(&out, "json", picoPorts))

	var decoded []transport.PortInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, picoPorts, decoded)
}

func TestRenderPortsYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderPorts(&out, "yaml", picoPorts[:1]))
	assert.Contains(t, out.String(), "name: /dev/ttyACM0")
	assert.Contains(t, out.String(), "vid: 2E8A")
}
