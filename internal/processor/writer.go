package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SaveResult describes a payload persisted to disk
type SaveResult struct {
	Path     string `json:"path" yaml:"path"`
	Bytes    uint64 `json:"bytes" yaml:"bytes"`
	Checksum string `json:"sha256" yaml:"sha256"`
}

// PayloadWriter persists received payloads
type PayloadWriter struct {
	fileService *FileService
	log         logrus.FieldLogger
}

// NewPayloadWriter creates a new payload writer
func NewPayloadWriter(log logrus.FieldLogger) *PayloadWriter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &PayloadWriter{
		fileService: NewFileService(),
		log:         log,
	}
}

// fileWriter wraps an open file and hashes everything written through it
type fileWriter struct {
	file              *os.File
	destPath          string
	hash              hash.Hash
	out               io.Writer
	totalBytesWritten uint64
}

// Save writes data to destPath, replacing any existing file. Short payloads
// are saved as-is so they can be inspected.
func (w *PayloadWriter) Save(destPath string, data []byte) (*SaveResult, error) {
	writer, err := w.prepareFileForWriting(destPath)
	if err != nil {
		return nil, err
	}

	if err := writer.writeData(data); err != nil {
		_ = writer.close()
		return nil, err
	}

	return w.finishWriting(writer)
}

// prepareFileForWriting opens a destination file for writing
func (w *PayloadWriter) prepareFileForWriting(destPath string) (*fileWriter, error) {
	file, err := w.fileService.createWriter(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}

	h := sha256.New()
	return &fileWriter{
		file:     file,
		destPath: destPath,
		hash:     h,
		out:      io.MultiWriter(file, h),
	}, nil
}

// writeData writes incoming data to the prepared file
func (fw *fileWriter) writeData(data []byte) error {
	n, err := fw.out.Write(data)
	fw.totalBytesWritten += uint64(n)
	if err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// finishWriting closes the file and returns what was written
func (w *PayloadWriter) finishWriting(writer *fileWriter) (*SaveResult, error) {
	if err := writer.close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	result := &SaveResult{
		Path:     writer.destPath,
		Bytes:    writer.totalBytesWritten,
		Checksum: hex.EncodeToString(writer.hash.Sum(nil)),
	}

	w.log.WithFields(logrus.Fields{
		"path":   result.Path,
		"bytes":  result.Bytes,
		"sha256": result.Checksum,
	}).Info("Raw data saved")
	return result, nil
}

// close closes the internal file writer
func (fw *fileWriter) close() error {
	return fw.file.Close()
}
