package handshake

import (
	"errors"
	"io"
	"testing"
	"time"

	"linkprobe/internal/device"
	"linkprobe/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 100 * time.Millisecond

// countingPort counts ReadLine calls on top of a real link.
type countingPort struct {
	*transport.Link
	lines int
}

func (c *countingPort) ReadLine(timeout time.Duration) ([]byte, error) {
	c.lines++
	return c.Link.ReadLine(timeout)
}

// failingPort fails the operation it is told to.
type failingPort struct {
	resetErr error
	writeErr error
	written  int
	readErr  error
}

func (f *failingPort) ResetBuffers() error { return f.resetErr }
func (f *failingPort) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written, nil
}
func (f *failingPort) ReadLine(time.Duration) ([]byte, error) { return nil, f.readErr }

func firstPayloadByte(t *testing.T, link *transport.Link) byte {
	t.Helper()
	b, err := link.ReadUpTo(1, testTimeout)
	require.NoError(t, err)
	require.Len(t, b, 1)
	return b[0]
}

func TestExactLineSuccess(t *testing.T) {
	sim := device.New(4, device.WithPreamble("BEGIN 1MiB"))
	link := transport.NewLink(sim)

	err := Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout)
	require.NoError(t, err)

	assert.Equal(t, []byte("G"), sim.Written())
	assert.Equal(t, byte(0x00), firstPayloadByte(t, link))
}

func TestExactLineAcceptsBareLF(t *testing.T) {
	sim := device.New(4, device.WithPreamble("BEGIN 1MiB"), device.WithLineEnding("\n"))
	link := transport.NewLink(sim)

	require.NoError(t, Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout))
	assert.Equal(t, byte(0x00), firstPayloadByte(t, link))
}

func TestExactLineRejectsNearMisses(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"lower case", "begin 1MiB"},
		{"trailing space", "BEGIN 1MiB "},
		{"leading space", " BEGIN 1MiB"},
		{"tab instead of space", "BEGIN\t1MiB"},
		{"different size", "BEGIN 8MiB"},
		{"empty line", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := device.New(4, device.WithPreamble(tt.line))
			link := transport.NewLink(sim)

			err := Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout)
			require.ErrorIs(t, err, ErrUnexpectedPreamble)

			var hsErr *HandshakeError
			require.True(t, errors.As(err, &hsErr))
			assert.Equal(t, []byte(tt.line+"\r\n"), hsErr.Actual)
		})
	}
}

func TestExactLineWithoutTerminatorFails(t *testing.T) {
	// the device answers, but never finishes the line
	sim := device.New(0, device.WithPreamble("BEGIN 1MiB"), device.WithLineEnding(""))
	link := transport.NewLink(sim)

	err := Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout)
	require.ErrorIs(t, err, ErrUnexpectedPreamble)

	var hsErr *HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, []byte("BEGIN 1MiB"), hsErr.Actual)
}

func TestExactLineSilentDevice(t *testing.T) {
	sim := device.New(4, device.WithTrigger('X'))
	link := transport.NewLink(sim)

	err := Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout)
	require.ErrorIs(t, err, ErrUnexpectedPreamble)
	assert.Contains(t, err.Error(), `got ""`)
}

func TestStaleBytesAreDiscarded(t *testing.T) {
	sim := device.New(4,
		device.WithStaleBytes([]byte("boot banner\r\n")),
		device.WithPreamble("BEGIN 1MiB"),
	)
	link := transport.NewLink(sim)

	require.NoError(t, Negotiate(link, 'G', ExactLine("BEGIN 1MiB"), testTimeout))
	assert.Equal(t, 1, sim.InputResets())
}

func TestScanUntilSentinel(t *testing.T) {
	sim := device.New(4, device.WithPreamble("hello", "world", "BEGIN"))
	port := &countingPort{Link: transport.NewLink(sim)}

	var diagnostics []string
	n := &Negotiator{
		Trigger: 'G',
		Mode:    ScanUntilSentinel("BEGIN"),
		Timeout: testTimeout,
		OnDiagnostic: func(line []byte) {
			diagnostics = append(diagnostics, string(line))
		},
	}

	require.NoError(t, n.Negotiate(port))
	assert.Equal(t, 3, port.lines)
	assert.Equal(t, []string{"hello", "world"}, diagnostics)
	assert.Equal(t, byte(0x00), firstPayloadByte(t, port.Link))
}

func TestScanUntilSentinelTimeout(t *testing.T) {
	sim := device.New(0, device.WithPreamble("streaming 512 bytes", "almost there"))
	link := transport.NewLink(sim)

	var diagnostics []string
	n := &Negotiator{
		Trigger:      'G',
		Mode:         ScanUntilSentinel("BEGIN_DATA"),
		Timeout:      testTimeout,
		OnDiagnostic: func(line []byte) { diagnostics = append(diagnostics, string(line)) },
	}

	err := n.Negotiate(link)
	require.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrUnexpectedPreamble)
	assert.Equal(t, []string{"streaming 512 bytes", "almost there"}, diagnostics)
}

func TestScanUntilSentinelNeedsWholeLine(t *testing.T) {
	sim := device.New(0, device.WithPreamble("BEGIN_DATA_V2", "BEGIN_DAT"))
	link := transport.NewLink(sim)

	err := Negotiate(link, 'G', ScanUntilSentinel("BEGIN_DATA"), testTimeout)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestNoneModeConsumesNothing(t *testing.T) {
	sim := device.New(4)
	link := transport.NewLink(sim)

	require.NoError(t, Negotiate(link, 'G', None(), testTimeout))
	assert.Equal(t, byte(0x00), firstPayloadByte(t, link))
}

func TestTransportErrorsPassThrough(t *testing.T) {
	boom := errors.New("port gone")

	err := Negotiate(&failingPort{resetErr: boom}, 'G', ExactLine("x"), testTimeout)
	assert.Same(t, boom, err)

	err = Negotiate(&failingPort{writeErr: boom}, 'G', ExactLine("x"), testTimeout)
	assert.Same(t, boom, err)

	err = Negotiate(&failingPort{written: 1, readErr: boom}, 'G', ExactLine("x"), testTimeout)
	assert.Same(t, boom, err)

	err = Negotiate(&failingPort{written: 1, readErr: boom}, 'G', ScanUntilSentinel("x"), testTimeout)
	assert.Same(t, boom, err)

	err = Negotiate(&failingPort{written: 0}, 'G', None(), testTimeout)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestTrimTerminator(t *testing.T) {
	tests := []struct {
		in         string
		want       string
		terminated bool
	}{
		{"BEGIN\n", "BEGIN", true},
		{"BEGIN\r\n", "BEGIN", true},
		{"BEGIN\r\r\n", "BEGIN\r", true},
		{"BEGIN", "BEGIN", false},
		{"BEGIN\r", "BEGIN\r", false},
		{"\n", "", true},
		{"", "", false},
	}
	for _, tt := range tests {
		got, terminated := TrimTerminator([]byte(tt.in))
		assert.Equal(t, tt.want, string(got), "input %q", tt.in)
		assert.Equal(t, tt.terminated, terminated, "input %q", tt.in)
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, `exact("BEGIN 1MiB")`, ExactLine("BEGIN 1MiB").String())
	assert.Equal(t, `scan("BEGIN_DATA")`, ScanUntilSentinel("BEGIN_DATA").String())
	assert.Equal(t, "none", None().String())
}
