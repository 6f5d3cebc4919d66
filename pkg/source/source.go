// Package source defines the image source boundary: the agent only ever
// sees a sequence of candidates per category and a way to fetch their
// bytes. The concrete search backend lives behind the Source interface.
package source

import (
	"context"

	"cheeseagent/pkg/cheese"
)

// Candidate is an unvalidated image reference returned by a search.
// Data is populated when the source delivers the image inline (data
// URIs in search results); otherwise URL points at the remote bytes.
type Candidate struct {
	// URL is the canonical source location. For inline candidates it is
	// a synthetic identity derived by the search backend.
	URL string

	// Data holds the image bytes when the search result carried them
	// inline. Empty means Fetch is required.
	Data []byte

	// Category is the category the candidate was searched under.
	Category cheese.Category

	// Query is the search query that produced the candidate.
	Query string
}

// Source yields candidates for a category and resolves their bytes.
type Source interface {
	// Search returns up to limit candidates for the category, in
	// discovery order.
	Search(ctx context.Context, category cheese.Category, limit int) ([]Candidate, error)

	// Fetch resolves a candidate to its image bytes. Candidates with
	// inline data are returned as-is.
	Fetch(ctx context.Context, c Candidate) ([]byte, error)
}
