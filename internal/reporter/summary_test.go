package reporter

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"linkprobe/internal/app"
	"linkprobe/internal/processor"
	"linkprobe/internal/verify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func okReport() *app.Report {
	return &app.Report{
		Result:      verify.Result{ByteCount: 1 << 20, Elapsed: 500 * time.Millisecond},
		TargetBytes: 1 << 20,
		Received:    1 << 20,
		Elapsed:     500 * time.Millisecond,
		Throughput:  2 << 20,
	}
}

func TestNewSummaryStatus(t *testing.T) {
	ok := NewSummary(okReport(), nil)
	assert.Equal(t, StatusOK, ok.Status)
	assert.Zero(t, ok.ExitCode)
	assert.Equal(t, 0.5, ok.ElapsedSeconds)

	short := okReport()
	short.Received = 1000
	short.Result.ByteCount = 1000
	s := NewSummary(short, nil)
	assert.Equal(t, StatusShort, s.Status)
	assert.Equal(t, 1, s.ExitCode)

	bad := okReport()
	bad.Result = verify.Result{ByteCount: 500000, Mismatch: &verify.Mismatch{Offset: 500000, Expected: 0x20, Actual: 0xFF}}
	s = NewSummary(bad, nil)
	assert.Equal(t, StatusMismatch, s.Status)
	assert.Equal(t, uint64(500000), s.VerifiedBytes)
	assert.Equal(t, 1, s.ExitCode)

	s = NewSummary(nil, errors.New("handshake failed"))
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, "handshake failed", s.Error)
	assert.Equal(t, 1, s.ExitCode)
}

func TestRenderText(t *testing.T) {
	rep := okReport()
	rep.Saved = &processor.SaveResult{Path: "pico_dump.bin", Bytes: 1 << 20, Checksum: "abc123"}

	var out bytes.Buffer
	require.NoError(t, Render(&out, "text", NewSummary(rep, nil)))

	text := out.String()
	assert.Contains(t, text, "Pattern OK")
	assert.Contains(t, text, "+ Received: 1048576 / 1048576 bytes (1.0 MiB)")
	assert.Contains(t, text, "+ Transfer time: 0.500 s")
	assert.Contains(t, text, "+ Average throughput: 2.00 MiB/s")
	assert.Contains(t, text, "+ Saved: pico_dump.bin (sha256 abc123)")
	assert.Contains(t, text, "+ Exit code: 0")
}

func TestRenderTextMismatch(t *testing.T) {
	rep := okReport()
	rep.Result = verify.Result{ByteCount: 500000, Mismatch: &verify.Mismatch{Offset: 500000, Expected: 0x20, Actual: 0xFF}}

	var out bytes.Buffer
	require.NoError(t, Render(&out, "", NewSummary(rep, nil)))
	assert.Contains(t, out.String(), "Pattern mismatch: mismatch at offset 0x0007A120 (500000): expected 0x20, got 0xFF")
}

func TestRenderTextError(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, "text", NewSummary(nil, errors.New("timed out waiting for preamble"))))
	assert.Contains(t, out.String(), "Run failed: timed out waiting for preamble")
	assert.NotContains(t, out.String(), "Received")
}

func TestRenderJSON(t *testing.T) {
	rep := okReport()
	rep.Result.Mismatch = &verify.Mismatch{Offset: 7, Expected: 7, Actual: 9}

	var out bytes.Buffer
	require.NoError(t, Render(&out, "JSON", NewSummary(rep, nil)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "mismatch", decoded["status"])
	assert.Equal(t, float64(1<<20), decoded["target_bytes"])
	assert.Equal(t, map[string]any{"offset": float64(7), "expected": float64(7), "actual": float64(9)}, decoded["mismatch"])
	assert.NotContains(t, decoded, "saved")
}

func TestRenderYAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, "yaml", NewSummary(okReport(), nil)))

	var decoded Summary
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, StatusOK, decoded.Status)
	assert.Equal(t, uint64(1<<20), decoded.ReceivedBytes)
	assert.Nil(t, decoded.Mismatch)
}

func TestRenderUnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, "xml", NewSummary(okReport(), nil))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
