package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage archives rendered export files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return filename, nil
}

// Archive saves data under a timestamped name derived from filename and
// returns the stored relative path.
func (s *LocalStorage) Archive(filename string, data []byte) (string, error) {
	ext := filepath.Ext(filename)
	base := filename[:len(filename)-len(ext)]
	stamped := fmt.Sprintf("%s-%s%s", base, time.Now().UTC().Format("20060102-150405"), ext)
	return s.Save(stamped, data)
}

func (s *LocalStorage) resolve(filename string) string {
	return filepath.Join(s.baseDir, filepath.Clean("/"+filename))
}
