package generator

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate is an unverified generator-proposed title. No identifier field
// exists on purpose: IDs from a generator cannot be trusted, so any ID-like
// key in the raw output is ignored.
type Candidate struct {
	Title       string
	MediaType   string // "movie" or "tv"
	ReleaseYear string
	Reason      string
}

// rawCandidate is the permissive wire shape of one generated element.
type rawCandidate struct {
	Title       string   `json:"title"`
	MediaType   string   `json:"mediaType"`
	Type        string   `json:"type"`
	ReleaseYear flexYear `json:"releaseYear"`
	Year        flexYear `json:"year"`
	Reason      string   `json:"reason"`
}

// flexYear accepts a JSON number or string year.
type flexYear string

func (y *flexYear) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*y = flexYear(strings.TrimSpace(asString))
		return nil
	}
	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*y = flexYear(strconv.Itoa(int(asNumber)))
		return nil
	}
	// Unparseable year: leave empty rather than failing the element.
	*y = ""
	return nil
}

// ParseCandidates extracts a JSON array from raw generator output and
// returns the valid candidates. The slice between the first '[' and the
// last ']' is parsed, tolerating prose and code fences around the array.
// Elements with a blank title or unusable year are dropped silently.
func ParseCandidates(raw string) []Candidate {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}

	var elements []rawCandidate
	if err := json.Unmarshal([]byte(raw[start:end+1]), &elements); err != nil {
		return nil
	}

	candidates := make([]Candidate, 0, len(elements))
	for _, el := range elements {
		c := Candidate{
			Title:       strings.TrimSpace(el.Title),
			MediaType:   normalizeMediaType(firstNonEmpty(el.MediaType, el.Type)),
			ReleaseYear: string(firstNonEmptyYear(el.ReleaseYear, el.Year)),
			Reason:      strings.TrimSpace(el.Reason),
		}
		if c.Title == "" {
			continue
		}
		if !validYear(c.ReleaseYear) {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

func normalizeMediaType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tv", "series", "show", "tvshow":
		return "tv"
	default:
		return "movie"
	}
}

func validYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonEmptyYear(a, b flexYear) flexYear {
	if a != "" {
		return a
	}
	return b
}
