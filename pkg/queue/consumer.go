package queue

import (
	"context"

	"cheeseagent/pkg/cheese"
	"cheeseagent/pkg/logger"
	"cheeseagent/pkg/state"
	"cheeseagent/pkg/storage"
)

// Consumer drains the pending-upload queue through an Uploader. Entries
// are always re-read from disk right before uploading so tag edits made
// by hand in the state file are honored, not a cached original.
type Consumer struct {
	store    *state.Store
	images   *storage.ImageStore
	uploader Uploader
	logger   logger.Logger
}

// NewConsumer builds a consumer over the given store and images dir.
func NewConsumer(store *state.Store, images *storage.ImageStore, uploader Uploader) *Consumer {
	return &Consumer{
		store:    store,
		images:   images,
		uploader: uploader,
		logger:   logger.GetLogger(),
	}
}

// DrainSummary counts the outcome of one drain pass.
type DrainSummary struct {
	Uploaded int
	Failed   int
}

// Drain attempts one upload per pending entry. A successful upload
// removes the entry and deletes the local file as one logical unit; a
// failed upload leaves the entry untouched for a future retry. Partial
// failure never corrupts the queue.
func (c *Consumer) Drain(ctx context.Context) (*DrainSummary, error) {
	current, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	summary := &DrainSummary{}
	for _, queued := range current.PendingUploads {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		// Re-read the entry so tag edits made while the drain is
		// running still land in this upload, not just edits made before
		// it started.
		fresh, err := c.store.Load()
		if err != nil {
			return summary, err
		}
		entry, ok := findPending(fresh, queued.ItemID)
		if !ok {
			c.logger.WarnWithFields("entry vanished before upload", map[string]interface{}{
				"item_id": queued.ItemID,
			})
			continue
		}

		if err := c.uploader.Upload(ctx, entry.LocalPath, entry.Tags); err != nil {
			summary.Failed++
			c.logger.WarnWithFields("upload failed, entry left for retry", map[string]interface{}{
				"item_id": entry.ItemID,
				"path":    entry.LocalPath,
				"error":   err.Error(),
			})
			continue
		}

		removed, err := c.store.DequeueUpload(entry.ItemID)
		if err != nil {
			if state.IsNotFound(err) {
				// Someone else already removed it; leave the file to them.
				c.logger.WarnWithFields("entry vanished between upload and dequeue", map[string]interface{}{
					"item_id": entry.ItemID,
				})
				continue
			}
			return summary, err
		}

		if err := c.images.Remove(removed.LocalPath); err != nil {
			c.logger.WarnWithFields("failed to delete uploaded file", map[string]interface{}{
				"item_id": removed.ItemID,
				"path":    removed.LocalPath,
				"error":   err.Error(),
			})
		}

		summary.Uploaded++
		c.logger.InfoWithFields("uploaded and dequeued", map[string]interface{}{
			"item_id": removed.ItemID,
			"path":    removed.LocalPath,
		})
	}

	return summary, nil
}

// findPending locates the pending entry for itemID in a loaded state file.
func findPending(f *state.File, itemID string) (cheese.PendingUploadEntry, bool) {
	for _, entry := range f.PendingUploads {
		if entry.ItemID == itemID {
			return entry, true
		}
	}
	return cheese.PendingUploadEntry{}, false
}
