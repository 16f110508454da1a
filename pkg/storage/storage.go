// Package storage provides access to stored dataset files.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore is the read-side interface the audit pipeline consumes. Paths are
// relative to the store's root.
type FileStore interface {
	// OpenReadStream opens the file for sequential reading.
	OpenReadStream(path string) (io.ReadCloser, error)

	// Exists reports whether the file is present.
	Exists(path string) (bool, error)

	// Size returns the file size in bytes.
	Size(path string) (int64, error)
}

// LocalFileStore serves files from a directory on the local filesystem.
type LocalFileStore struct {
	root string
}

// NewLocalFileStore creates a store rooted at dir.
func NewLocalFileStore(dir string) *LocalFileStore {
	return &LocalFileStore{root: dir}
}

// OpenReadStream implements FileStore.
func (s *LocalFileStore) OpenReadStream(path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// Exists implements FileStore.
func (s *LocalFileStore) Exists(path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

// Size implements FileStore.
func (s *LocalFileStore) Size(path string) (int64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

// resolve joins path onto the root, rejecting escapes above it.
func (s *LocalFileStore) resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid file path %q", path)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Ensure LocalFileStore implements FileStore at compile time.
var _ FileStore = (*LocalFileStore)(nil)
