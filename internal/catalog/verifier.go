package catalog

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	verifyTimeout   = 10 * time.Second
	cacheTTL        = 5 * time.Minute
	cacheMaxEntries = 256
)

// Searcher is the catalog search operation the Verifier depends on.
// Implemented by Client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Verifier resolves a free-text title/type/year guess to a single
// catalog record, or nothing. The title+year match is the gate that keeps
// hallucinated or wrong-edition candidates out of the result set.
type Verifier struct {
	client Searcher
	cache  *lookupCache
}

// NewVerifier creates a Verifier over the given catalog search client.
func NewVerifier(client Searcher) *Verifier {
	return &Verifier{
		client: client,
		cache:  newLookupCache(cacheTTL, cacheMaxEntries),
	}
}

// Verify looks up rawTitle in the catalog and returns the best match whose
// normalized title and release year both agree with the hints, or nil when
// no entry satisfies both. Network and parse errors are treated the same as
// "no match".
func (v *Verifier) Verify(ctx context.Context, rawTitle, hintedType, hintedYear string) *EnrichedItem {
	title := strings.TrimSpace(rawTitle)
	if title == "" {
		return nil
	}

	// The hinted year is part of the key: remakes share a title, and a hit
	// for one edition must never answer a lookup for the other.
	cacheKey := normalizeTitle(title) + "|" + hintedType + "|" + hintedYear
	if item, ok := v.cache.get(cacheKey); ok {
		return &item
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	results, err := v.client.Search(ctx, title)
	if err != nil {
		slog.Warn("catalog search failed", "title", title, "error", err)
		return nil
	}

	match := selectMatch(results, title, hintedType, hintedYear)
	if match == nil {
		return nil
	}

	item := enrich(*match)
	v.cache.set(cacheKey, item)
	return &item
}

// selectMatch picks the first result whose normalized title matches and
// whose year is exact; when no exact-year entry exists it retries with a
// one-year tolerance. A remake under the same title but a different year
// never passes.
func selectMatch(results []SearchResult, title, hintedType, hintedYear string) *SearchResult {
	wantTitle := normalizeTitle(title)
	wantYear, yearErr := strconv.Atoi(hintedYear)

	for _, tolerance := range []int{0, 1} {
		for i := range results {
			r := &results[i]
			if r.MediaType == "person" {
				continue
			}
			if hintedType != "" && r.MediaType != "" && r.MediaType != hintedType {
				continue
			}
			if !titleMatches(normalizeTitle(r.DisplayTitle()), wantTitle) {
				continue
			}
			if yearErr != nil {
				// No usable year hint: first title match wins.
				return r
			}
			gotYear, err := strconv.Atoi(r.Year())
			if err != nil {
				continue
			}
			if abs(gotYear-wantYear) <= tolerance {
				return r
			}
		}
		if yearErr != nil {
			break
		}
	}
	return nil
}

func enrich(r SearchResult) EnrichedItem {
	item := EnrichedItem{
		CatalogID:   r.ID,
		Title:       r.DisplayTitle(),
		MediaType:   r.MediaType,
		ReleaseDate: r.ReleaseDate,
		Overview:    r.Overview,
		VoteAverage: r.VoteAverage,
	}
	if item.MediaType == "" {
		item.MediaType = "movie"
	}
	if item.ReleaseDate == "" {
		item.ReleaseDate = r.FirstAirDate
	}
	if r.PosterPath != "" {
		item.PosterURL = imageBaseURL + r.PosterPath
	}
	if r.BackdropPath != "" {
		item.BackdropURL = imageBaseURL + r.BackdropPath
	}
	return item
}

// titleMatches reports whether two normalized titles are equal or one
// contains the other (catalog entries often carry subtitles the generator
// omits, and vice versa).
func titleMatches(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return got == want || strings.Contains(got, want) || strings.Contains(want, got)
}

// normalizeTitle lowercases and strips everything but letters, digits, and
// single spaces.
func normalizeTitle(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
