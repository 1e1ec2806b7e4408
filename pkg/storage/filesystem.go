package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
)

// LocalStorage writes export files under an existing output directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage checks that baseDir exists and is a directory. It never
// creates the directory.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, appErrors.Wrap(nil, appErrors.ErrInvalidOutputDir, "output directory is required")
	}
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidOutputDir, fmt.Sprintf("%s is not a directory", baseDir))
	}
	if !info.IsDir() {
		return nil, appErrors.Wrap(nil, appErrors.ErrInvalidOutputDir, fmt.Sprintf("%s is not a directory", baseDir))
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Create opens a new file for read and write, truncating any existing one.
// The handle is readable so it can be rewound and uploaded after writing.
// filename must be a single path element inside the output directory.
func (s *LocalStorage) Create(filename string) (*os.File, error) {
	if filename == "" || filename == "." || filename == ".." || filepath.Base(filename) != filename || strings.ContainsAny(filename, `/\`) {
		return nil, appErrors.Wrap(nil, appErrors.ErrWrite, fmt.Sprintf("invalid export file name %q", filename))
	}
	path := s.Path(filename)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrWrite, fmt.Sprintf("create export file %s", path))
	}
	return file, nil
}

// Path resolves filename against the output directory.
func (s *LocalStorage) Path(filename string) string {
	return filepath.Join(s.baseDir, filename)
}
