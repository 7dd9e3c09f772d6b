package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"linkprobe/pkg/types"
	"linkprobe/pkg/utils"

	"github.com/schollz/progressbar/v3"
)

// ConsoleUI renders transfer progress as a terminal progress bar
type ConsoleUI struct {
	bar            *progressbar.ProgressBar
	out            io.Writer
	operation      string // e.g. "Receiving"
	totalBytes     uint64
	currentBytes   uint64
	startTime      time.Time
	lastUpdateTime time.Time
	now            func() time.Time
}

// NewConsoleUI creates a console UI writing to out (stderr when nil)
func NewConsoleUI(operation string, out io.Writer) *ConsoleUI {
	if out == nil {
		out = os.Stderr
	}
	// Don't initialize progress bar yet - wait for first progress update
	return &ConsoleUI{
		operation: operation,
		out:       out,
		now:       time.Now,
	}
}

// Received returns the byte count shown by the bar
func (c *ConsoleUI) Received() uint64 {
	return c.currentBytes
}

// StartUpdatingReceiverProgress consumes progress updates until the channel
// closes, the target is reached or ctx is done.
func (c *ConsoleUI) StartUpdatingReceiverProgress(ctx context.Context, progressCh <-chan types.ProgressUpdate) {
	defer c.completeProgress()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-progressCh:
			if !ok {
				return
			}

			c.updateProgress(update)

			if c.totalBytes > 0 && c.currentBytes >= c.totalBytes {
				return
			}
		}
	}
}

// initProgressBar initializes the progress bar with default settings
func (c *ConsoleUI) initProgressBar(total uint64) {
	if c.bar != nil {
		return
	}

	description := "Transfer..."
	if c.operation != "" {
		description = fmt.Sprintf("%s...", c.operation)
	}

	maxBytes := int64(-1) // indeterminate
	if total > 0 {
		maxBytes = int64(total)
	}

	c.bar = progressbar.NewOptions64(maxBytes,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionShowBytes(false), // custom byte display in the description
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetPredictTime(false),
	)
}

// updateProgress updates the progress bar with current transfer state
func (c *ConsoleUI) updateProgress(update types.ProgressUpdate) {
	if c.bar == nil {
		c.totalBytes = update.TotalBytes
		c.initProgressBar(update.TotalBytes)
	}

	// Received is cumulative so dropped updates don't skew the count
	if update.Received > c.currentBytes {
		c.currentBytes = update.Received
	} else {
		c.currentBytes += update.NewBytes
	}

	now := c.now()
	first := c.startTime.IsZero()
	if first {
		c.startTime = now
	}

	isComplete := c.totalBytes > 0 && c.currentBytes >= c.totalBytes
	if !first && !isComplete && now.Sub(c.lastUpdateTime) < 200*time.Millisecond {
		return
	}

	_ = c.bar.Set64(int64(c.currentBytes))

	throughput := 0.0
	if elapsed := now.Sub(c.startTime); elapsed > 0 {
		throughput = float64(c.currentBytes) / elapsed.Seconds()
	}
	c.bar.Describe(fmt.Sprintf("%s (%s/%s, %s)", c.operation,
		utils.FormatFileSize(int64(c.currentBytes)),
		utils.FormatFileSize(int64(c.totalBytes)),
		utils.FormatThroughput(throughput)))

	c.lastUpdateTime = now
}

// completeProgress marks the progress as complete
func (c *ConsoleUI) completeProgress() {
	if c.bar == nil {
		return
	}
	_ = c.bar.Finish()
}
