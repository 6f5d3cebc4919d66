// Package agent drives one scrape run: pull candidates per category,
// classify and dedup them, persist accepted images, and enqueue them
// for the external upload consumer.
package agent

import (
	"context"
	"time"

	"cheeseagent/pkg/cheese"
	"cheeseagent/pkg/classify"
	"cheeseagent/pkg/config"
	errs "cheeseagent/pkg/errors"
	"cheeseagent/pkg/logger"
	"cheeseagent/pkg/source"
	"cheeseagent/pkg/state"
	"cheeseagent/pkg/storage"
)

// Options are the per-run knobs.
type Options struct {
	// TargetPerCategory is how many accepted images to collect per
	// category before moving on.
	TargetPerCategory int

	// MaxCandidatesPerCategory bounds how many candidates are examined
	// per category. Exhausting the budget is a logged shortfall, not an
	// error.
	MaxCandidatesPerCategory int
}

// CategoryStats counts what happened for one category during a run.
type CategoryStats struct {
	Category cheese.Category
	Found    int
	Skipped  int
	Examined int
	// Shortfall is set when the candidate budget ran out (or the search
	// failed) before the target count was reached.
	Shortfall bool
}

// Summary describes a completed run.
type Summary struct {
	StartedAt   time.Time
	CompletedAt time.Time
	TotalFound  int
	Categories  []CategoryStats
}

// Agent orchestrates scrape runs. Candidates are processed one at a
// time, in category order then discovery order; every accepted
// candidate is committed to the state store individually.
type Agent struct {
	source     source.Source
	store      *state.Store
	images     *storage.ImageStore
	classifier *classify.Classifier
	logger     logger.Logger
}

// New builds an agent from configuration and a source implementation.
func New(cfg *config.Config, src source.Source) (*Agent, error) {
	images, err := storage.NewImageStore(cfg.Output.ImagesDirectory)
	if err != nil {
		return nil, err
	}

	return &Agent{
		source: src,
		store:  state.NewStore(cfg.State.File),
		images: images,
		classifier: &classify.Classifier{
			MinWidth:    cfg.Scrape.MinWidth,
			MinHeight:   cfg.Scrape.MinHeight,
			MaxFileSize: cfg.Scrape.MaxFileSize,
		},
		logger: logger.GetLogger(),
	}, nil
}

// Store exposes the agent's state store.
func (a *Agent) Store() *state.Store {
	return a.store
}

// Run executes one scrape pass over all categories and appends a
// RunRecord. It fails only when the source is unreachable before any
// search has succeeded, or when the state store itself breaks;
// per-candidate and per-category shortfalls are recovered locally.
func (a *Agent) Run(ctx context.Context, opts Options) (*Summary, error) {
	startedAt := time.Now().UTC()
	categories := cheese.Categories()

	a.logger.InfoWithFields("starting scrape run", map[string]interface{}{
		"target_per_category": opts.TargetPerCategory,
		"candidate_budget":    opts.MaxCandidatesPerCategory,
		"categories":          len(categories),
	})

	// Dedup consults everything scraped so far plus this run's finds.
	current, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(current.ScrapedImages))
	for id := range current.ScrapedImages {
		known[id] = true
	}

	summary := &Summary{StartedAt: startedAt}
	searchSucceeded := false

	for _, category := range categories {
		stats := CategoryStats{Category: category}

		candidates, err := a.source.Search(ctx, category, opts.MaxCandidatesPerCategory)
		if err != nil {
			if !searchSucceeded {
				// No search has worked yet: the source is unreachable,
				// the whole run is pointless.
				return nil, errs.Wrap(errs.ErrorTypeSourceUnavailable, err,
					"image source unreachable: %v", err)
			}
			a.logger.WarnWithFields("search failed, skipping category", map[string]interface{}{
				"category": string(category),
				"error":    err.Error(),
			})
			stats.Shortfall = true
			summary.Categories = append(summary.Categories, stats)
			continue
		}
		searchSucceeded = true

		for _, cand := range candidates {
			if stats.Found >= opts.TargetPerCategory {
				break
			}
			if stats.Examined >= opts.MaxCandidatesPerCategory {
				break
			}
			stats.Examined++

			accepted, err := a.processCandidate(ctx, cand, known)
			if err != nil {
				return nil, err
			}
			if accepted {
				stats.Found++
				summary.TotalFound++
			} else {
				stats.Skipped++
			}
		}

		if stats.Found < opts.TargetPerCategory {
			stats.Shortfall = true
			a.logger.InfoWithFields("category fell short of target", map[string]interface{}{
				"category": string(category),
				"found":    stats.Found,
				"target":   opts.TargetPerCategory,
				"examined": stats.Examined,
			})
		}

		summary.Categories = append(summary.Categories, stats)
	}

	summary.CompletedAt = time.Now().UTC()

	record := cheese.RunRecord{
		StartedAt:           summary.StartedAt,
		CompletedAt:         summary.CompletedAt,
		ItemsFound:          summary.TotalFound,
		CategoriesRequested: categories,
	}
	if err := a.store.AppendRun(record); err != nil {
		return nil, err
	}

	a.logger.InfoWithFields("scrape run completed", map[string]interface{}{
		"items_found": summary.TotalFound,
		"duration":    summary.CompletedAt.Sub(summary.StartedAt),
	})

	return summary, nil
}

// processCandidate resolves, classifies, persists, and enqueues a single
// candidate. It returns (false, nil) for local skips and a non-nil error
// only for state store failures, which abort the run.
func (a *Agent) processCandidate(ctx context.Context, cand source.Candidate, known map[string]bool) (bool, error) {
	if len(cand.Data) == 0 {
		data, err := a.source.Fetch(ctx, cand)
		if err != nil {
			a.logger.WarnWithFields("failed to fetch candidate bytes", map[string]interface{}{
				"category": string(cand.Category),
				"url":      cand.URL,
				"error":    err.Error(),
			})
			return false, nil
		}
		cand.Data = data
	}

	result, err := a.classifier.Classify(cand, func(fp string) bool { return known[fp] })
	if err != nil {
		if classify.IsRejection(err) {
			a.logger.DebugWithFields("candidate rejected", map[string]interface{}{
				"category": string(cand.Category),
				"reason":   err.Error(),
			})
			return false, nil
		}
		return false, err
	}

	path, err := a.images.Save(cand.Category, result.Fingerprint, cand.Data)
	if err != nil {
		a.logger.WarnWithFields("failed to persist image", map[string]interface{}{
			"category":    string(cand.Category),
			"fingerprint": result.Fingerprint,
			"error":       err.Error(),
		})
		return false, nil
	}

	now := time.Now().UTC()
	item := cheese.ScrapedItem{
		ID:           result.Fingerprint,
		LocalPath:    path,
		Category:     cand.Category,
		SourceQuery:  cand.Query,
		DiscoveredAt: now,
	}

	// The item must be durably recorded before its pending entry exists:
	// a crash in between leaves an orphan item (never uploaded, fine),
	// never a pending entry with no backing item.
	if err := a.store.AddScrapedItem(item); err != nil {
		return false, err
	}

	entry := cheese.PendingUploadEntry{
		ItemID:     item.ID,
		LocalPath:  path,
		Category:   cand.Category,
		Tags:       cheese.DefaultTags(cand.Category, now),
		EnqueuedAt: now,
	}
	if err := a.store.EnqueueUpload(entry); err != nil {
		return false, err
	}

	known[result.Fingerprint] = true

	a.logger.InfoWithFields("candidate accepted", map[string]interface{}{
		"category":    string(cand.Category),
		"fingerprint": result.Fingerprint,
		"path":        path,
		"size_bytes":  len(cand.Data),
	})

	return true, nil
}
