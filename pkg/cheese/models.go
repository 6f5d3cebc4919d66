package cheese

import "time"

// ScrapedItem is one accepted image. Immutable once created; the
// pending queue references it by ID, never copies it.
type ScrapedItem struct {
	ID           string    `json:"id"`
	LocalPath    string    `json:"local_path"`
	Category     Category  `json:"category"`
	SourceQuery  string    `json:"source_query"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// PendingUploadEntry is an accepted-but-not-yet-uploaded item. Tags are
// deliberately a plain string map so a human can edit them in the state
// file between enqueue and upload; consumers must read them from disk,
// not from a cached original.
type PendingUploadEntry struct {
	ItemID     string            `json:"item_id"`
	LocalPath  string            `json:"local_path"`
	Category   Category          `json:"category"`
	Tags       map[string]string `json:"tags"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// RunRecord summarizes one scrape run. Append-only.
type RunRecord struct {
	StartedAt           time.Time  `json:"started_at"`
	CompletedAt         time.Time  `json:"completed_at"`
	ItemsFound          int        `json:"items_found"`
	CategoriesRequested []Category `json:"categories_requested"`
}

// DefaultTags returns the tag set attached to a fresh enqueue. Keys
// mirror what the upload side expects; values may be overridden by hand
// in the state file before the upload happens.
func DefaultTags(category Category, discoveredAt time.Time) map[string]string {
	return map[string]string{
		"cheese_type": string(category),
		"source":      "image-search",
		"license":     "creative-commons",
		"scrape_date": discoveredAt.Format("2006-01-02"),
	}
}
