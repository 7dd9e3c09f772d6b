// Package verify checks a received payload against the generator pattern.
package verify

import (
	"fmt"
	"time"
)

// Pattern maps a payload offset to the byte the device generates there.
// Implementations must be pure and defined for every offset.
type Pattern func(offset uint64) byte

// ModPattern is the firmware test pattern: offset mod 256.
func ModPattern(offset uint64) byte {
	return byte(offset & 0xFF)
}

// Mismatch is the first offset whose byte differs from the pattern
type Mismatch struct {
	Offset   uint64 `json:"offset" yaml:"offset"`
	Expected byte   `json:"expected" yaml:"expected"`
	Actual   byte   `json:"actual" yaml:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("mismatch at offset 0x%08X (%d): expected 0x%02X, got 0x%02X",
		m.Offset, m.Offset, m.Expected, m.Actual)
}

// Result is the outcome of one verification. Mismatch is nil on success.
// ByteCount is the number of leading bytes that matched the pattern, which
// is the whole payload on success.
type Result struct {
	ByteCount uint64
	Elapsed   time.Duration
	Mismatch  *Mismatch
}

// OK reports whether every compared byte matched.
func (r Result) OK() bool {
	return r.Mismatch == nil
}

func (r Result) String() string {
	if r.Mismatch != nil {
		return r.Mismatch.String()
	}
	return fmt.Sprintf("ok: %d bytes in %s", r.ByteCount, r.Elapsed)
}

// Verify compares payload against pattern in increasing offset order and
// stops at the first difference. A nil pattern means ModPattern.
// A payload shorter than the transfer target still verifies; completeness
// is the caller's check.
func Verify(payload []byte, pattern Pattern, elapsed time.Duration) Result {
	c := NewChecker(pattern)
	_, _ = c.Write(payload)
	return c.Result(elapsed)
}

// Checker verifies a payload incrementally as chunks arrive. It implements
// io.Writer so it can sit next to a file sink in an io.MultiWriter.
type Checker struct {
	pattern  Pattern
	offset   uint64
	mismatch *Mismatch
}

// NewChecker returns a Checker starting at offset 0.
func NewChecker(pattern Pattern) *Checker {
	if pattern == nil {
		pattern = ModPattern
	}
	return &Checker{pattern: pattern}
}

// Write checks the next chunk. It never fails; once a mismatch is found the
// remaining bytes are accepted without comparison.
func (c *Checker) Write(p []byte) (int, error) {
	if c.mismatch != nil {
		return len(p), nil
	}
	for _, b := range p {
		want := c.pattern(c.offset)
		if b != want {
			c.mismatch = &Mismatch{Offset: c.offset, Expected: want, Actual: b}
			return len(p), nil
		}
		c.offset++
	}
	return len(p), nil
}

// Checked returns how many leading bytes matched so far.
func (c *Checker) Checked() uint64 {
	return c.offset
}

// Mismatch returns the first mismatch, or nil.
func (c *Checker) Mismatch() *Mismatch {
	return c.mismatch
}

// Result summarises everything written so far.
func (c *Checker) Result(elapsed time.Duration) Result {
	r := Result{ByteCount: c.offset, Elapsed: elapsed}
	if c.mismatch != nil {
		m := *c.mismatch
		r.Mismatch = &m
	}
	return r
}
