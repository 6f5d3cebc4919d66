// Package storage manages the local images directory: atomic writes,
// deterministic filenames, and removal when an upload is confirmed.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cheeseagent/pkg/cheese"
)

// ImageStore handles image file operations under a single directory.
type ImageStore struct {
	dir   string
	files map[string]bool // filename -> present
	mu    sync.RWMutex
}

// NewImageStore creates the directory if needed and scans it so counts
// reflect files left over from earlier runs.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	store := &ImageStore{
		dir:   dir,
		files: make(map[string]bool),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan images directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jpg" {
			store.files[entry.Name()] = true
		}
	}

	return store, nil
}

// FileName returns the deterministic filename for an accepted image,
// e.g. "washed-rind_3fa9c81d02e4b761.jpg". Category labels contain only
// lowercase letters and hyphens so the name is always filesystem-safe.
func FileName(category cheese.Category, fingerprint string) string {
	return fmt.Sprintf("%s_%s.jpg", strings.ReplaceAll(string(category), " ", "_"), fingerprint)
}

// Dir returns the images directory path.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save writes image bytes under the deterministic name for
// (category, fingerprint) and returns the full path. The write goes
// through a temp file and rename so readers never see partial bytes.
func (s *ImageStore) Save(category cheese.Category, fingerprint string, data []byte) (string, error) {
	name := FileName(category, fingerprint)
	path := filepath.Join(s.dir, name)

	tempPath := path + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, writeErr := out.Write(data)
	closeErr := out.Close()
	if writeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write image data: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close image file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	s.mu.Lock()
	s.files[name] = true
	s.mu.Unlock()

	return path, nil
}

// Remove deletes a stored image. Missing files are not an error: the
// entry removal and file deletion are one logical unit, and crash
// recovery may have already taken the file.
func (s *ImageStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}

	s.mu.Lock()
	delete(s.files, filepath.Base(path))
	s.mu.Unlock()

	return nil
}

// Has reports whether the file for (category, fingerprint) exists.
func (s *ImageStore) Has(category cheese.Category, fingerprint string) bool {
	name := FileName(category, fingerprint)

	s.mu.RLock()
	cached := s.files[name]
	s.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(filepath.Join(s.dir, name)); err == nil {
		s.mu.Lock()
		s.files[name] = true
		s.mu.Unlock()
		return true
	}
	return false
}

// Count returns the number of images currently tracked.
func (s *ImageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
