// Package handshake triggers the device and consumes the text preamble that
// precedes the binary payload.
package handshake

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrTimeout means no preamble line arrived in time.
	ErrTimeout = errors.New("timed out waiting for handshake preamble")
	// ErrUnexpectedPreamble means a line arrived but was not the expected marker.
	ErrUnexpectedPreamble = errors.New("unexpected handshake preamble")
)

// Port is what the negotiator needs from the transport
type Port interface {
	Write(p []byte) (int, error)
	ReadLine(timeout time.Duration) ([]byte, error)
	ResetBuffers() error
}

// Kind identifies a handshake mode
type Kind int

const (
	// KindNone sends the trigger and expects binary data right away.
	KindNone Kind = iota
	// KindExactLine requires the first line to equal the marker.
	KindExactLine
	// KindScanUntilSentinel skips lines until one equals the marker.
	KindScanUntilSentinel
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindExactLine:
		return "exact"
	case KindScanUntilSentinel:
		return "scan"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Mode is the preamble expected after the trigger
type Mode struct {
	Kind   Kind
	Marker []byte
}

// ExactLine expects exactly one line equal to expected.
func ExactLine(expected string) Mode {
	return Mode{Kind: KindExactLine, Marker: []byte(expected)}
}

// ScanUntilSentinel discards lines until one equals sentinel.
func ScanUntilSentinel(sentinel string) Mode {
	return Mode{Kind: KindScanUntilSentinel, Marker: []byte(sentinel)}
}

// None expects no preamble at all.
func None() Mode {
	return Mode{Kind: KindNone}
}

func (m Mode) String() string {
	if m.Kind == KindNone {
		return m.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", m.Kind, m.Marker)
}

// HandshakeError carries the bytes that made the handshake fail.
type HandshakeError struct {
	Err    error // ErrTimeout or ErrUnexpectedPreamble
	Mode   Mode
	Actual []byte // raw bytes of the offending line, terminator included
}

func (e *HandshakeError) Error() string {
	if errors.Is(e.Err, ErrTimeout) {
		return fmt.Sprintf("%v (mode %s)", e.Err, e.Mode)
	}
	return fmt.Sprintf("%v: expected %q, got %q", e.Err, e.Mode.Marker, e.Actual)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Negotiator runs the trigger/preamble exchange.
type Negotiator struct {
	Trigger byte
	Mode    Mode
	Timeout time.Duration

	// OnDiagnostic receives every preamble line that is skipped in scan
	// mode, terminator stripped. The slice must not be retained.
	OnDiagnostic func(line []byte)
}

// Negotiate is a shorthand for a Negotiator without diagnostics.
func Negotiate(port Port, trigger byte, mode Mode, timeout time.Duration) error {
	n := &Negotiator{Trigger: trigger, Mode: mode, Timeout: timeout}
	return n.Negotiate(port)
}

// Negotiate flushes the port, sends the trigger and consumes the preamble.
// On success the next byte readable from port is the first payload byte.
// Transport errors are returned unchanged.
func (n *Negotiator) Negotiate(port Port) error {
	if err := port.ResetBuffers(); err != nil {
		return err
	}

	written, err := port.Write([]byte{n.Trigger})
	if err != nil {
		return err
	}
	if written != 1 {
		return io.ErrShortWrite
	}

	switch n.Mode.Kind {
	case KindNone:
		return nil
	case KindExactLine:
		return n.expectLine(port)
	case KindScanUntilSentinel:
		return n.scanUntilSentinel(port)
	default:
		return fmt.Errorf("unknown handshake mode %s", n.Mode.Kind)
	}
}

func (n *Negotiator) expectLine(port Port) error {
	line, err := port.ReadLine(n.Timeout)
	if err != nil {
		return err
	}

	body, terminated := TrimTerminator(line)
	if !terminated || !bytes.Equal(body, n.Mode.Marker) {
		return &HandshakeError{Err: ErrUnexpectedPreamble, Mode: n.Mode, Actual: line}
	}
	return nil
}

func (n *Negotiator) scanUntilSentinel(port Port) error {
	for {
		line, err := port.ReadLine(n.Timeout)
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return &HandshakeError{Err: ErrTimeout, Mode: n.Mode}
		}

		body, terminated := TrimTerminator(line)
		if terminated && bytes.Equal(body, n.Mode.Marker) {
			return nil
		}
		if n.OnDiagnostic != nil {
			n.OnDiagnostic(body)
		}
	}
}

// TrimTerminator strips a trailing "\n" or "\r\n" and reports whether one
// was present. Nothing else is trimmed.
func TrimTerminator(line []byte) ([]byte, bool) {
	if !bytes.HasSuffix(line, []byte{'\n'}) {
		return line, false
	}
	line = line[:len(line)-1]
	return bytes.TrimSuffix(line, []byte{'\r'}), true
}
