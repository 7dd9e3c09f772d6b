// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"linkprobe/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logrus logger writing to out (stderr when nil) and, when
// enabled, to a rotating log file. The returned close function releases the
// file and is safe to call when no file is configured.
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	closeFn := func() error { return nil }

	if cfg.File.Enabled {
		fw, err := createFileWriter(cfg.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, fw)
		closeFn = fw.Close
	}

	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return logger, closeFn, nil
}

// parseLevel accepts an empty level as info
func parseLevel(levelStr string) (logrus.Level, error) {
	if strings.TrimSpace(levelStr) == "" {
		return logrus.InfoLevel, nil
	}
	return logrus.ParseLevel(strings.ToLower(levelStr))
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.LogFileConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}, nil
}
