// Package app wires the transport, handshake, receiver and verifier into a
// single verification run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"linkprobe/internal/config"
	"linkprobe/internal/handshake"
	"linkprobe/internal/processor"
	"linkprobe/internal/receiver"
	"linkprobe/internal/transport"
	"linkprobe/internal/ui"
	"linkprobe/internal/verify"
	"linkprobe/pkg/types"

	"github.com/sirupsen/logrus"
)

// ErrNoOpener is returned when a Runner has no way to open a port
var ErrNoOpener = errors.New("no port opener configured")

// Opener acquires the transport for one run. The runner owns the returned
// port and closes it before Run returns.
type Opener func(ctx context.Context) (transport.Port, error)

// Options configures a single verification run
type Options struct {
	Trigger     byte
	Mode        handshake.Mode
	TargetBytes uint64
	ChunkSize   int
	ReadTimeout time.Duration
	SettleDelay time.Duration // wait after opening before the trigger is sent
	Pattern     verify.Pattern
	SavePath    string // optional raw dump destination
	Progress    bool
}

// OptionsFromConfig maps a validated configuration onto run options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Trigger:     cfg.TriggerByte(),
		Mode:        ModeFromConfig(cfg.Handshake),
		TargetBytes: cfg.Transfer.TargetBytes,
		ChunkSize:   cfg.Transfer.ChunkSize,
		ReadTimeout: cfg.Transfer.ReadTimeout,
		SettleDelay: cfg.Transfer.SettleDelay,
		Pattern:     verify.ModPattern,
		SavePath:    cfg.Output.SavePath,
		Progress:    cfg.Output.Progress,
	}
}

// ModeFromConfig converts the handshake section into a negotiation mode
func ModeFromConfig(hc config.HandshakeConfig) handshake.Mode {
	switch strings.ToLower(hc.Mode) {
	case config.HandshakeScan:
		return handshake.ScanUntilSentinel(hc.Sentinel)
	case config.HandshakeNone:
		return handshake.None()
	default:
		return handshake.ExactLine(hc.Expected)
	}
}

// Runner executes verification runs
type Runner struct {
	Open Opener
	Log  logrus.FieldLogger

	// ProgressOut receives the progress bar when Options.Progress is set.
	ProgressOut io.Writer
}

// NewRunner creates a runner using open to acquire the port
func NewRunner(open Opener, log logrus.FieldLogger) *Runner {
	return &Runner{Open: open, Log: log}
}

// Run opens the port, negotiates the handshake, receives up to the target
// and verifies what arrived. Handshake and transport failures are returned
// as errors; a short or corrupt payload is reported in the Report.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	if r.Open == nil {
		return nil, ErrNoOpener
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	port, err := r.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open port: %w", err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			log.WithError(err).Warn("Error closing port")
		}
	}()

	// Closing the port is the only way to unblock a pending read
	stop := context.AfterFunc(ctx, func() {
		_ = port.Close()
	})
	defer stop()

	if opts.SettleDelay > 0 {
		select {
		case <-time.After(opts.SettleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	log.WithFields(logrus.Fields{
		"trigger": fmt.Sprintf("%q", opts.Trigger),
		"mode":    opts.Mode.String(),
	}).Info("Sending trigger")

	negotiator := &handshake.Negotiator{
		Trigger: opts.Trigger,
		Mode:    opts.Mode,
		Timeout: opts.ReadTimeout,
		OnDiagnostic: func(line []byte) {
			log.Infof("device > %s", line)
		},
	}
	if err := negotiator.Negotiate(port); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	log.Info("Handshake complete, receiving payload")

	payload, err := r.receive(ctx, port, opts, log)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	report := &Report{
		Result:      verify.Verify(payload.Bytes, opts.Pattern, payload.Elapsed),
		TargetBytes: opts.TargetBytes,
		Received:    payload.Len(),
		Elapsed:     payload.Elapsed,
		Throughput:  payload.Throughput(),
		Payload:     payload.Bytes,
	}

	if opts.SavePath != "" {
		saved, err := processor.NewPayloadWriter(log).Save(opts.SavePath, payload.Bytes)
		if err != nil {
			return report, fmt.Errorf("failed to save payload: %w", err)
		}
		report.Saved = saved
	}

	entry := log.WithFields(logrus.Fields{
		"received": report.Received,
		"target":   report.TargetBytes,
	})
	switch {
	case !report.Result.OK():
		entry.Error(report.Result.Mismatch.String())
	case !report.Complete():
		entry.Warn("Short receipt")
	default:
		entry.Info("Payload verified")
	}
	return report, nil
}

// receive runs the receive loop with the progress bar attached
func (r *Runner) receive(ctx context.Context, port transport.Port, opts Options, log logrus.FieldLogger) (*receiver.Payload, error) {
	recv := &receiver.Receiver{
		TargetBytes: opts.TargetBytes,
		ChunkSize:   opts.ChunkSize,
		Timeout:     opts.ReadTimeout,
		Log:         log,
	}

	if !opts.Progress || r.ProgressOut == nil {
		return recv.Receive(ctx, port)
	}

	progressCh := make(chan types.ProgressUpdate, 64)
	recv.Progress = progressCh

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ui.NewConsoleUI("Receiving", r.ProgressOut).StartUpdatingReceiverProgress(ctx, progressCh)
	}()

	payload, err := recv.Receive(ctx, port)
	close(progressCh)
	wg.Wait()
	return payload, err
}
