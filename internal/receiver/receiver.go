// Package receiver pulls the binary payload off the transport in bounded
// chunks and times the transfer.
package receiver

import (
	"context"
	"time"

	"linkprobe/pkg/types"

	"github.com/sirupsen/logrus"
)

// MinElapsed floors transfer durations so throughput never divides by zero.
const MinElapsed = 100 * time.Microsecond

// maxPrealloc caps the up-front buffer reservation for large targets.
const maxPrealloc = 64 << 20

// Reader is what the receiver needs from the transport
type Reader interface {
	ReadUpTo(max int, timeout time.Duration) ([]byte, error)
}

// Payload is the append-only result of one receive loop
type Payload struct {
	Bytes   []byte
	Elapsed time.Duration
}

// Len returns the number of bytes received
func (p *Payload) Len() uint64 {
	return uint64(len(p.Bytes))
}

// Throughput returns bytes per second.
func (p *Payload) Throughput() float64 {
	elapsed := p.Elapsed
	if elapsed < MinElapsed {
		elapsed = MinElapsed
	}
	return float64(len(p.Bytes)) / elapsed.Seconds()
}

// Receiver accumulates up to TargetBytes from a Reader
type Receiver struct {
	TargetBytes uint64
	ChunkSize   int
	Timeout     time.Duration

	// Progress, when set, gets one update per non-empty chunk. Sends never
	// block; updates are dropped when the consumer lags.
	Progress chan<- types.ProgressUpdate

	Log logrus.FieldLogger

	now func() time.Time
}

// Receive is a shorthand for a Receiver without progress reporting.
func Receive(ctx context.Context, port Reader, targetBytes uint64, chunkSize int, timeout time.Duration) (*Payload, error) {
	r := &Receiver{TargetBytes: targetBytes, ChunkSize: chunkSize, Timeout: timeout}
	return r.Receive(ctx, port)
}

// Receive reads until TargetBytes arrived or a read returns nothing. A stall
// is not an error: the short payload is returned and the caller compares its
// length with the target. A transport error or context cancellation ends the
// loop and is returned together with everything received so far.
func (r *Receiver) Receive(ctx context.Context, port Reader) (*Payload, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	now := r.now
	if now == nil {
		now = time.Now
	}

	chunkSize := uint64(r.ChunkSize)
	if chunkSize == 0 {
		chunkSize = 1
	}

	payload := &Payload{Bytes: make([]byte, 0, min(r.TargetBytes, maxPrealloc))}
	start := now()
	finish := func() {
		payload.Elapsed = now().Sub(start)
		if payload.Elapsed < MinElapsed {
			payload.Elapsed = MinElapsed
		}
	}

	for payload.Len() < r.TargetBytes {
		if err := ctx.Err(); err != nil {
			finish()
			return payload, err
		}

		want := min(chunkSize, r.TargetBytes-payload.Len())
		chunk, err := port.ReadUpTo(int(want), r.Timeout)
		if uint64(len(chunk)) > want {
			chunk = chunk[:want]
		}
		payload.Bytes = append(payload.Bytes, chunk...)

		if len(chunk) > 0 {
			r.report(uint64(len(chunk)), payload.Len())
		}
		if err != nil {
			finish()
			return payload, err
		}
		if len(chunk) == 0 {
			log.WithFields(logrus.Fields{
				"received": payload.Len(),
				"target":   r.TargetBytes,
			}).Warn("Transfer stalled: read timed out with no data")
			break
		}
	}

	finish()
	log.WithFields(logrus.Fields{
		"bytes":   payload.Len(),
		"elapsed": payload.Elapsed.Round(time.Millisecond),
	}).Debug("Receive loop finished")
	return payload, nil
}

func (r *Receiver) report(n, received uint64) {
	if r.Progress == nil {
		return
	}
	select {
	case r.Progress <- types.ProgressUpdate{NewBytes: n, Received: received, TotalBytes: r.TargetBytes}:
	default:
		// Progress channel full, skip this update to avoid blocking
	}
}
