package app

import (
	"time"

	"linkprobe/internal/processor"
	"linkprobe/internal/verify"
)

// Report is the outcome of one run that got past the handshake
type Report struct {
	Result      verify.Result
	TargetBytes uint64
	Received    uint64
	Elapsed     time.Duration
	Throughput  float64 // bytes per second
	Saved       *processor.SaveResult
	Payload     []byte `json:"-"`
}

// Complete reports whether the full target arrived
func (r *Report) Complete() bool {
	return r.Received == r.TargetBytes
}

// ExitCode is 0 only for a complete payload that matched the pattern
func (r *Report) ExitCode() int {
	if r.Result.OK() && r.Complete() {
		return 0
	}
	return 1
}

// ExitCodeFor maps a Run outcome onto a process exit code
func ExitCodeFor(report *Report, err error) int {
	if err != nil || report == nil {
		return 1
	}
	return report.ExitCode()
}
