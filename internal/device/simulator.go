// Package device provides an in-memory stand-in for the streaming firmware.
//
// A Simulator behaves like an opened serial port: it waits for the trigger
// byte, emits its preamble lines and then streams a deterministic pattern.
// Faults (corrupted offsets, stalls, read errors, stale bytes, chunking) are
// configured with functional options.
package device

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("simulated port closed")

// DefaultLineEnding matches what the Pico SDK stdio emits.
const DefaultLineEnding = "\r\n"

// Option configures a Simulator
type Option func(*Simulator)

// WithTrigger sets the byte that starts the stream (default 'G').
func WithTrigger(b byte) Option {
	return func(s *Simulator) { s.trigger = b }
}

// WithPreamble sets the text lines sent after the trigger, before the payload.
// Each line gets the line ending appended.
func WithPreamble(lines ...string) Option {
	return func(s *Simulator) { s.preamble = append([]string(nil), lines...) }
}

// WithLineEnding overrides DefaultLineEnding.
func WithLineEnding(ending string) Option {
	return func(s *Simulator) { s.lineEnding = ending }
}

// WithPattern replaces the payload generator (default offset mod 256).
func WithPattern(fn func(offset uint64) byte) Option {
	return func(s *Simulator) { s.pattern = fn }
}

// WithCorruption makes the payload carry value at offset instead of the pattern.
func WithCorruption(offset uint64, value byte) Option {
	return func(s *Simulator) { s.corrupt[offset] = value }
}

// WithStallAfter stops the stream after n payload bytes; later reads time out.
func WithStallAfter(n uint64) Option {
	return func(s *Simulator) {
		s.stallAfter = n
		s.stall = true
	}
}

// WithReadError makes Read fail with err once n payload bytes were delivered.
func WithReadError(n uint64, err error) Option {
	return func(s *Simulator) {
		s.failAfter = n
		s.failErr = err
	}
}

// WithMaxChunk limits how many bytes a single Read may return.
func WithMaxChunk(n int) Option {
	return func(s *Simulator) { s.maxChunk = n }
}

// WithStaleBytes queues bytes that are readable before the trigger is sent.
func WithStaleBytes(b []byte) Option {
	return func(s *Simulator) { s.pending = append(s.pending, b...) }
}

// WithTrailer queues bytes after the last payload byte (e.g. "END\r\n").
func WithTrailer(b []byte) Option {
	return func(s *Simulator) { s.trailer = append([]byte(nil), b...) }
}

// WithTimeoutDelay makes an empty Read sleep for min(d, read timeout)
// instead of returning immediately, like a real port would.
func WithTimeoutDelay(d time.Duration) Option {
	return func(s *Simulator) { s.timeoutDelay = d }
}

// Simulator is a duplex byte stream playing the device side of the link.
// It satisfies the raw port contract of go.bug.st/serial: a Read that times
// out returns (0, nil).
type Simulator struct {
	mu sync.Mutex

	trigger      byte
	preamble     []string
	lineEnding   string
	size         uint64
	pattern      func(offset uint64) byte
	corrupt      map[uint64]byte
	stall        bool
	stallAfter   uint64
	failErr      error
	failAfter    uint64
	maxChunk     int
	trailer      []byte
	timeoutDelay time.Duration

	pending      []byte
	streaming    bool
	streamed     uint64
	trailerSent  bool
	written      []byte
	readTimeout  time.Duration
	inputResets  int
	outputResets int
	closed       bool
}

// New creates a simulator that streams size payload bytes once triggered.
func New(size uint64, opts ...Option) *Simulator {
	s := &Simulator{
		trigger:    'G',
		lineEnding: DefaultLineEnding,
		size:       size,
		pattern:    func(offset uint64) byte { return byte(offset) },
		corrupt:    make(map[uint64]byte),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read delivers whatever is available, bounded by len(p) and the max chunk.
func (s *Simulator) Read(p []byte) (int, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}

	limit := len(p)
	if s.maxChunk > 0 && s.maxChunk < limit {
		limit = s.maxChunk
	}

	n := copy(p[:limit], s.pending)
	s.pending = s.pending[n:]

	if s.streaming && len(s.pending) == 0 {
		if s.failErr != nil && s.streamed >= s.failAfter {
			s.mu.Unlock()
			if n > 0 {
				return n, nil
			}
			return 0, s.failErr
		}

		end := s.size
		if s.stall && s.stallAfter < end {
			end = s.stallAfter
		}
		if s.failErr != nil && s.failAfter < end {
			end = s.failAfter
		}
		for n < limit && s.streamed < end {
			p[n] = s.byteAt(s.streamed)
			s.streamed++
			n++
		}
		if s.streamed == s.size && !s.trailerSent {
			s.pending = append(s.pending, s.trailer...)
			s.trailerSent = true
		}
	}

	delay := s.timeoutDelay
	if s.readTimeout > 0 && s.readTimeout < delay {
		delay = s.readTimeout
	}
	s.mu.Unlock()

	if n == 0 && delay > 0 {
		time.Sleep(delay)
	}
	return n, nil
}

// Write records host bytes and starts the stream on the trigger byte.
func (s *Simulator) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	s.written = append(s.written, p...)

	for _, b := range p {
		if b != s.trigger || s.streaming {
			continue
		}
		for _, line := range s.preamble {
			s.pending = append(s.pending, line...)
			s.pending = append(s.pending, s.lineEnding...)
		}
		s.streaming = true
	}
	return len(p), nil
}

// ResetInputBuffer discards bytes queued for the host.
func (s *Simulator) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.inputResets++
	return nil
}

// ResetOutputBuffer is a no-op besides bookkeeping: writes are never queued.
func (s *Simulator) ResetOutputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputResets++
	return nil
}

// SetReadTimeout records the timeout used by WithTimeoutDelay.
func (s *Simulator) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readTimeout = t
	return nil
}

// Close marks the port closed. Closing twice is allowed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Written returns a copy of everything the host wrote.
func (s *Simulator) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// Delivered returns how many payload bytes were handed out.
func (s *Simulator) Delivered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed
}

// InputResets returns how often ResetInputBuffer was called.
func (s *Simulator) InputResets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputResets
}

// IsClosed reports whether Close was called.
func (s *Simulator) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Simulator) byteAt(offset uint64) byte {
	if v, ok := s.corrupt[offset]; ok {
		return v
	}
	return s.pattern(offset)
}
