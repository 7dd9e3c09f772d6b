package transport

import (
	"errors"
	"io"
	"sync"
	"time"
)

// RawPort is the subset of go.bug.st/serial.Port the link relies on.
// A Read that hits the read timeout must return (0, nil).
type RawPort interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Port is the transport handle consumed by the handshake and the receiver.
type Port interface {
	// Write sends bytes to the device.
	Write(p []byte) (int, error)
	// ReadLine returns bytes up to and including '\n', or whatever arrived
	// before the timeout (possibly nothing). It never reads past the '\n'.
	ReadLine(timeout time.Duration) ([]byte, error)
	// ReadUpTo blocks up to timeout for at least one byte and returns at most
	// max bytes. An empty result means the read timed out.
	ReadUpTo(max int, timeout time.Duration) ([]byte, error)
	// ResetBuffers discards queued inbound and outbound bytes.
	ResetBuffers() error
	// Close releases the port. It is safe to call more than once.
	Close() error
}

const lineTerminator = '\n'

// Link implements Port on top of a RawPort.
type Link struct {
	raw RawPort

	buf     []byte
	one     [1]byte
	timeout time.Duration
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewLink wraps an opened raw port.
func NewLink(raw RawPort) *Link {
	return &Link{
		raw:     raw,
		timeout: -1,
		now:     time.Now,
	}
}

// Write sends p to the device
func (l *Link) Write(p []byte) (int, error) {
	return l.raw.Write(p)
}

// ReadLine reads one byte per underlying read so the binary payload that may
// follow the terminator stays in the port's buffer.
func (l *Link) ReadLine(timeout time.Duration) ([]byte, error) {
	deadline := l.now().Add(timeout)
	var line []byte

	for {
		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return line, nil
		}
		if err := l.setReadTimeout(remaining); err != nil {
			return line, err
		}

		n, err := l.raw.Read(l.one[:])
		if n == 1 {
			line = append(line, l.one[0])
			if l.one[0] == lineTerminator {
				return line, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return line, nil
			}
			return line, err
		}
		if n == 0 {
			return line, nil
		}
	}
}

// ReadUpTo returns a slice into an internal buffer that is only valid until
// the next call.
func (l *Link) ReadUpTo(max int, timeout time.Duration) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}
	if cap(l.buf) < max {
		l.buf = make([]byte, max)
	}
	if err := l.setReadTimeout(timeout); err != nil {
		return nil, err
	}

	n, err := l.raw.Read(l.buf[:max])
	if err != nil && errors.Is(err, io.EOF) {
		err = nil
	}
	return l.buf[:n], err
}

// ResetBuffers flushes both directions
func (l *Link) ResetBuffers() error {
	if err := l.raw.ResetInputBuffer(); err != nil {
		return err
	}
	return l.raw.ResetOutputBuffer()
}

// Close closes the underlying port exactly once and returns the same result
// to every caller.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.raw.Close()
	})
	return l.closeErr
}

func (l *Link) setReadTimeout(t time.Duration) error {
	if t == l.timeout {
		return nil
	}
	if err := l.raw.SetReadTimeout(t); err != nil {
		return err
	}
	l.timeout = t
	return nil
}
