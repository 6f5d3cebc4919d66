package cheese

import (
	"testing"
	"time"
)

func TestCategories(t *testing.T) {
	cats := Categories()
	if len(cats) != 6 {
		t.Fatalf("Expected 6 categories, got %d", len(cats))
	}

	// Scrape order is part of the contract.
	expected := []Category{Bloomy, Blue, Fresh, Hard, SemiSoft, WashedRind}
	for i, c := range expected {
		if cats[i] != c {
			t.Errorf("Expected category %d to be %s, got %s", i, c, cats[i])
		}
	}

	// Mutating the returned slice must not affect the set.
	cats[0] = "cheddar"
	if Categories()[0] != Bloomy {
		t.Error("Categories() must return a copy")
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		parsed, err := ParseCategory(string(c))
		if err != nil {
			t.Errorf("Expected %s to parse, got error: %v", c, err)
		}
		if parsed != c {
			t.Errorf("Expected %s, got %s", c, parsed)
		}
	}

	for _, bad := range []string{"", "cheddar", "BLUE", "semi soft", "washed rind"} {
		if _, err := ParseCategory(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestCategoryValid(t *testing.T) {
	if !Blue.Valid() {
		t.Error("Expected blue to be valid")
	}
	if Category("gouda").Valid() {
		t.Error("Expected gouda to be invalid")
	}
}

func TestSearchQuery(t *testing.T) {
	if got := SemiSoft.SearchQuery(); got != "semi-soft cheese" {
		t.Errorf("Expected 'semi-soft cheese', got %q", got)
	}
}

func TestDefaultTags(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	tags := DefaultTags(Blue, at)

	if tags["cheese_type"] != "blue" {
		t.Errorf("Expected cheese_type blue, got %q", tags["cheese_type"])
	}
	if tags["scrape_date"] != "2026-08-25" {
		t.Errorf("Expected scrape_date 2026-08-25, got %q", tags["scrape_date"])
	}
	if tags["license"] == "" || tags["source"] == "" {
		t.Error("Expected license and source tags to be set")
	}
}
