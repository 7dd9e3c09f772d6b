package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileService handles basic file operations
type FileService struct{}

// NewFileService creates a new file service
func NewFileService() *FileService {
	return &FileService{}
}

// openReader opens a file for reading
func (f *FileService) openReader(filePath string) (*os.File, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// createWriter creates a file for writing
func (f *FileService) createWriter(destPath string) (*os.File, error) {
	// Create directory if it doesn't exist
	if err := f.ensureDir(filepath.Dir(destPath)); err != nil {
		return nil, err
	}

	file, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return file, nil
}

// ensureDir creates directory if it doesn't exist
func (f *FileService) ensureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// ReadDump loads a previously saved payload
func (f *FileService) ReadDump(filePath string) ([]byte, error) {
	file, err := f.openReader(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}
	return data, nil
}

// CalculateFileChecksum calculates SHA-256 checksum of a file
func (f *FileService) CalculateFileChecksum(filePath string) (string, error) {
	file, err := f.openReader(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer file.Close()

	hash := sha256.New()

	// Copy file contents to hash
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to read file for checksum: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
