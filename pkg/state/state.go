// Package state owns the agent's durable JSON state file: run history,
// the all-time scraped set, and the pending-upload queue. Every mutation
// is a full load-mutate-atomic-write cycle so an external consumer
// editing the file between agent runs is always re-read, never clobbered.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cheeseagent/pkg/cheese"
	errs "cheeseagent/pkg/errors"
	"cheeseagent/pkg/logger"
)

const currentVersion = 1

// conflictRetries bounds how often a mutation is retried when the file
// changes underneath it between load and write.
const conflictRetries = 3

// File is the aggregate root persisted on disk. It stays hand-editable:
// a human may alter tags on a pending entry between enqueue and upload.
type File struct {
	Version        int                           `json:"version"`
	RunHistory     []cheese.RunRecord            `json:"run_history"`
	ScrapedImages  map[string]cheese.ScrapedItem `json:"scraped_images"`
	PendingUploads []cheese.PendingUploadEntry   `json:"pending_uploads"`
}

func emptyFile() *File {
	return &File{
		Version:        currentVersion,
		RunHistory:     []cheese.RunRecord{},
		ScrapedImages:  map[string]cheese.ScrapedItem{},
		PendingUploads: []cheese.PendingUploadEntry{},
	}
}

// Store reads and writes the state file.
type Store struct {
	path   string
	mu     sync.Mutex
	logger logger.Logger
}

// NewStore creates a store for the given state file path. The file does
// not need to exist yet.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: logger.GetLogger(),
	}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current on-disk state. A missing or unparseable file
// yields empty state so the first run is self-healing; a parseable file
// with invariant violations is migrated, not rejected.
func (s *Store) Load() (*File, error) {
	raw, exists, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	if !exists {
		return emptyFile(), nil
	}
	return s.decode(raw), nil
}

func (s *Store) readRaw() ([]byte, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state file: %w", err)
	}
	return data, true, nil
}

// decode parses raw bytes and enforces the schema invariants. Anything
// that cannot be repaired is dropped with a warning.
func (s *Store) decode(raw []byte) *File {
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		s.logger.WarnWithFields("state file is not valid JSON, starting from empty state", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return emptyFile()
	}
	return s.normalize(&f)
}

// normalize repairs a decoded state file in place: nil collections are
// materialized, pending entries without a backing scraped item are
// dropped, and duplicate pending entries per item id are collapsed to
// the first one.
func (s *Store) normalize(f *File) *File {
	if f.Version == 0 {
		f.Version = currentVersion
	}
	if f.RunHistory == nil {
		f.RunHistory = []cheese.RunRecord{}
	}
	if f.ScrapedImages == nil {
		f.ScrapedImages = map[string]cheese.ScrapedItem{}
	}
	if f.PendingUploads == nil {
		f.PendingUploads = []cheese.PendingUploadEntry{}
	}

	kept := f.PendingUploads[:0]
	seen := make(map[string]bool, len(f.PendingUploads))
	for _, entry := range f.PendingUploads {
		if _, ok := f.ScrapedImages[entry.ItemID]; !ok {
			s.logger.WarnWithFields("dropping pending upload without a backing scraped item", map[string]interface{}{
				"item_id": entry.ItemID,
			})
			continue
		}
		if seen[entry.ItemID] {
			s.logger.WarnWithFields("dropping duplicate pending upload", map[string]interface{}{
				"item_id": entry.ItemID,
			})
			continue
		}
		seen[entry.ItemID] = true
		kept = append(kept, entry)
	}
	f.PendingUploads = kept
	return f
}

// mutate runs one load-mutate-atomic-write cycle. The raw bytes read at
// load time are compared against the file again right before the rename;
// if they changed, the whole cycle is retried against the fresh state.
func (s *Store) mutate(fn func(*File) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= conflictRetries; attempt++ {
		snapshot, existed, err := s.readRaw()
		if err != nil {
			return err
		}

		var f *File
		if existed {
			f = s.decode(snapshot)
		} else {
			f = emptyFile()
		}

		if err := fn(f); err != nil {
			return err
		}

		conflict, err := s.writeAtomic(f, snapshot, existed)
		if err != nil {
			return err
		}
		if !conflict {
			return nil
		}

		s.logger.WarnWithFields("state file changed during mutation, retrying", map[string]interface{}{
			"path":    s.path,
			"attempt": attempt,
		})
	}

	return errs.New(errs.ErrorTypeStateConflict,
		"state file %s kept changing underneath %d mutation attempts", s.path, conflictRetries)
}

// writeAtomic writes f to a temp file, verifies the on-disk state still
// matches the load-time snapshot, and renames the temp file into place.
// It reports conflict=true when the verify step failed.
func (s *Store) writeAtomic(f *File, snapshot []byte, existed bool) (bool, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode state: %w", err)
	}
	data = append(data, '\n')

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return false, fmt.Errorf("failed to create temporary state file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to write state: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to close state file: %w", err)
	}

	// Re-read-before-write: detect an external writer that slipped in
	// between our load and this point.
	current, currentExists, err := s.readRaw()
	if err != nil {
		os.Remove(tempPath)
		return false, err
	}
	if currentExists != existed || !bytes.Equal(current, snapshot) {
		os.Remove(tempPath)
		return true, nil
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to replace state file: %w", err)
	}
	return false, nil
}

// AppendRun appends a run record to the history.
func (s *Store) AppendRun(rec cheese.RunRecord) error {
	return s.mutate(func(f *File) error {
		f.RunHistory = append(f.RunHistory, rec)
		return nil
	})
}

// AddScrapedItem records a newly accepted item. Adding an id that
// already exists is an error: items are immutable once created.
func (s *Store) AddScrapedItem(item cheese.ScrapedItem) error {
	if item.ID == "" {
		return errs.New(errs.ErrorTypeValidation, "scraped item has no id")
	}
	if !item.Category.Valid() {
		return errs.New(errs.ErrorTypeValidation, "scraped item %s has unknown category %q", item.ID, item.Category)
	}
	return s.mutate(func(f *File) error {
		if _, ok := f.ScrapedImages[item.ID]; ok {
			return errs.New(errs.ErrorTypeValidation, "scraped item %s already exists", item.ID)
		}
		f.ScrapedImages[item.ID] = item
		return nil
	})
}

// EnqueueUpload appends a pending entry. The referenced item must
// already be durably recorded; a crash can therefore leave an item with
// no pending entry, but never the reverse.
func (s *Store) EnqueueUpload(entry cheese.PendingUploadEntry) error {
	return s.mutate(func(f *File) error {
		if _, ok := f.ScrapedImages[entry.ItemID]; !ok {
			return errs.New(errs.ErrorTypeValidation,
				"cannot enqueue upload for unrecorded item %s", entry.ItemID)
		}
		for _, existing := range f.PendingUploads {
			if existing.ItemID == entry.ItemID {
				return errs.New(errs.ErrorTypeValidation,
					"item %s is already pending upload", entry.ItemID)
			}
		}
		f.PendingUploads = append(f.PendingUploads, entry)
		return nil
	})
}

// DequeueUpload removes the pending entry for itemID and returns it as
// it was on disk at removal time, tag edits included. An unknown id is
// a distinguishable NotFound, never a silent no-op, so the caller can
// tell "already removed" from "removal performed".
func (s *Store) DequeueUpload(itemID string) (cheese.PendingUploadEntry, error) {
	var removed cheese.PendingUploadEntry
	err := s.mutate(func(f *File) error {
		for i, entry := range f.PendingUploads {
			if entry.ItemID == itemID {
				removed = entry
				f.PendingUploads = append(f.PendingUploads[:i], f.PendingUploads[i+1:]...)
				return nil
			}
		}
		return errs.New(errs.ErrorTypeNotFound, "no pending upload for item %s", itemID)
	})
	return removed, err
}

// IsNotFound reports whether err is the NotFound result of a dequeue.
func IsNotFound(err error) bool {
	return errs.IsType(err, errs.ErrorTypeNotFound)
}
