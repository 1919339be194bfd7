// Package exclusions aggregates every "do not suggest" signal for a user
// into one per-request set.
package exclusions

import (
	"fmt"
	"strings"
)

// TitleYear is a display title and four-digit year pair.
type TitleYear struct {
	Title string
	Year  string
}

// Set holds the catalog IDs and title/year strings a user must never be
// shown. IDs are the authoritative exclusion key; title strings are only a
// hint for prompt construction. The set only grows within a request.
type Set struct {
	ids        map[int]struct{}
	titleYears map[string]TitleYear // case-folded "title (year)" key
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{
		ids:        make(map[int]struct{}),
		titleYears: make(map[string]TitleYear),
	}
}

// Add records a catalog ID. Zero and negative IDs are ignored.
func (s *Set) Add(id int) {
	if id <= 0 {
		return
	}
	s.ids[id] = struct{}{}
}

// Contains reports whether the catalog ID is excluded.
func (s *Set) Contains(id int) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of excluded catalog IDs.
func (s *Set) Len() int {
	return len(s.ids)
}

// AddTitleYear records a title/year hint, deduplicated case-insensitively.
func (s *Set) AddTitleYear(title, year string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	key := strings.ToLower(fmt.Sprintf("%s (%s)", title, year))
	if _, ok := s.titleYears[key]; ok {
		return
	}
	s.titleYears[key] = TitleYear{Title: title, Year: year}
}

// TitleYears returns the collected title/year hints in no particular order.
func (s *Set) TitleYears() []TitleYear {
	out := make([]TitleYear, 0, len(s.titleYears))
	for _, ty := range s.titleYears {
		out = append(out, ty)
	}
	return out
}
