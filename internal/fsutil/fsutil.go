package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// LogFile is an exclusively created log file.
type LogFile struct {
	*os.File
	path string
}

// Path returns the absolute path of the log file.
func (l *LogFile) Path() string { return l.path }

// Remove closes and deletes the log file.
func (l *LogFile) Remove() error {
	if err := l.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("failed to remove log file: %w", err)
	}
	return nil
}

// CreateExclusive creates <dir>/<prefix>-<n>.log for the smallest n >= 0
// that does not exist yet. The file is opened with O_EXCL, so two processes
// racing on the same prefix always end up with different files. A missing
// dir is created (0700) and the same suffix is retried.
//
// Files are created with 0600 permissions (owner read/write only).
func CreateExclusive(dir, prefix string) (*LogFile, error) {
	createdDir := false
	for n := 0; ; {
		path := filepath.Join(dir, prefix+"-"+strconv.Itoa(n)+".log")

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
		switch {
		case err == nil:
			return &LogFile{File: file, path: path}, nil
		case errors.Is(err, fs.ErrExist):
			n++
		case errors.Is(err, fs.ErrNotExist) && !createdDir:
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			createdDir = true
		default:
			return nil, fmt.Errorf("failed to create log file %s: %w", path, err)
		}
	}
}

// syncDir opens a directory and calls fsync on it
// This ensures directory metadata (file creation and removal) is durable
func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}

	return nil
}

// Finish syncs the log file and its directory, then closes it.
func (l *LogFile) Finish() error {
	if err := l.File.Sync(); err != nil {
		l.File.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := l.File.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	if err := syncDir(filepath.Dir(l.path)); err != nil {
		return err
	}
	return nil
}
