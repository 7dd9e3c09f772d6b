// Package reporter renders the outcome of a verification run.
package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"linkprobe/internal/app"
	"linkprobe/internal/processor"
	"linkprobe/internal/verify"
	"linkprobe/pkg/utils"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for an output format other than text, json or yaml
var ErrUnknownFormat = errors.New("unknown report format")

// Run outcomes
const (
	StatusOK       = "ok"
	StatusShort    = "short"
	StatusMismatch = "mismatch"
	StatusError    = "error"
)

// Summary is the machine-readable view of a run
type Summary struct {
	Status          string                `json:"status" yaml:"status"`
	ExitCode        int                   `json:"exit_code" yaml:"exit_code"`
	TargetBytes     uint64                `json:"target_bytes" yaml:"target_bytes"`
	ReceivedBytes   uint64                `json:"received_bytes" yaml:"received_bytes"`
	VerifiedBytes   uint64                `json:"verified_bytes" yaml:"verified_bytes"`
	ElapsedSeconds  float64               `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	ThroughputBytes float64               `json:"throughput_bytes_per_second" yaml:"throughput_bytes_per_second"`
	Mismatch        *verify.Mismatch      `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`
	Saved           *processor.SaveResult `json:"saved,omitempty" yaml:"saved,omitempty"`
	Error           string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewSummary condenses a Run outcome. report may be nil when err is set.
func NewSummary(report *app.Report, err error) Summary {
	s := Summary{ExitCode: app.ExitCodeFor(report, err)}

	if report != nil {
		s.TargetBytes = report.TargetBytes
		s.ReceivedBytes = report.Received
		s.VerifiedBytes = report.Result.ByteCount
		s.ElapsedSeconds = report.Elapsed.Seconds()
		s.ThroughputBytes = report.Throughput
		s.Mismatch = report.Result.Mismatch
		s.Saved = report.Saved
	}

	switch {
	case err != nil:
		s.Status = StatusError
		s.Error = err.Error()
	case report == nil:
		s.Status = StatusError
	case !report.Result.OK():
		s.Status = StatusMismatch
	case !report.Complete():
		s.Status = StatusShort
	default:
		s.Status = StatusOK
	}
	return s
}

// Render writes s to w in the given format
func Render(w io.Writer, format string, s Summary) error {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, s)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func renderText(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString("=============================================\n")
	switch s.Status {
	case StatusOK:
		b.WriteString("Pattern OK\n")
	case StatusShort:
		fmt.Fprintf(&b, "Short receipt: received %d bytes, expected %d\n", s.ReceivedBytes, s.TargetBytes)
	case StatusMismatch:
		fmt.Fprintf(&b, "Pattern mismatch: %s\n", s.Mismatch)
	default:
		fmt.Fprintf(&b, "Run failed: %s\n", s.Error)
	}

	if s.Status != StatusError || s.TargetBytes > 0 {
		fmt.Fprintf(&b, "+ Received: %d / %d bytes (%s)\n",
			s.ReceivedBytes, s.TargetBytes, utils.FormatFileSize(int64(s.ReceivedBytes)))
		fmt.Fprintf(&b, "+ Transfer time: %.3f s\n", s.ElapsedSeconds)
		fmt.Fprintf(&b, "+ Average throughput: %s\n", utils.FormatThroughput(s.ThroughputBytes))
	}
	if s.Saved != nil {
		fmt.Fprintf(&b, "+ Saved: %s (sha256 %s)\n", s.Saved.Path, s.Saved.Checksum)
	}
	fmt.Fprintf(&b, "+ Exit code: %d\n", s.ExitCode)
	b.WriteString("=============================================\n")

	_, err := io.WriteString(w, b.String())
	return err
}
