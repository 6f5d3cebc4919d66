package cheese

import "fmt"

// Category is one of the fixed cheese-type labels used for both
// scraping targets and upload tagging. The set is closed: values
// outside it are rejected at parse time, never stored.
type Category string

const (
	Bloomy     Category = "bloomy"
	Blue       Category = "blue"
	Fresh      Category = "fresh"
	Hard       Category = "hard"
	SemiSoft   Category = "semi-soft"
	WashedRind Category = "washed-rind"
)

// categories holds the closed set in scrape order.
var categories = []Category{Bloomy, Blue, Fresh, Hard, SemiSoft, WashedRind}

// Categories returns all known categories in the order scrape runs
// process them. The returned slice is a copy.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory validates a raw label against the closed category set.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown cheese category: %q", s)
}

// Valid reports whether c is a member of the closed set.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

// SearchQuery returns the image-search query for this category,
// e.g. "semi-soft cheese".
func (c Category) SearchQuery() string {
	return string(c) + " cheese"
}
