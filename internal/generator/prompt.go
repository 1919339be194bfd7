package generator

import (
	"fmt"
	"strings"
)

// candidatesPerRound is how many titles one generation round asks for.
// Deliberately larger than a response page so verified surplus carries
// over to the next request via the buffer cache.
const candidatesPerRound = 20

// minProfileLength is the shortest taste profile considered useful; below
// it the generic fallback persona is substituted.
const minProfileLength = 40

const fallbackPersona = "A viewer with broad taste who enjoys well-reviewed movies and series across genres and eras, and likes discovering titles outside the mainstream."

// Entry is one row of the prompt's exclusion table.
type Entry struct {
	Title string
	Year  string
}

// Filters narrow what the generator is asked for.
type Filters struct {
	MediaType string // "movie", "tv", or "" for both
	Genre     string
	Mood      string
}

// BuildPrompt assembles the single-turn recommendation prompt: persona
// preamble, taste profile (or fallback), selection constraints, and the
// deduplicated exclusion table.
func BuildPrompt(profileText string, exclusions []Entry, f Filters) string {
	var sb strings.Builder

	sb.WriteString("You are an expert movie and TV series recommendation curator for a personal media dashboard.\n\n")

	profile := strings.TrimSpace(profileText)
	if len(profile) < minProfileLength {
		profile = fallbackPersona
	}
	fmt.Fprintf(&sb, "Viewer taste profile:\n%s\n\n", profile)

	fmt.Fprintf(&sb, "Recommend exactly %d titles.\n", candidatesPerRound)
	sb.WriteString("Requirements:\n")
	switch f.MediaType {
	case "movie":
		sb.WriteString("- Movies only.\n")
	case "tv":
		sb.WriteString("- TV series only.\n")
	default:
		sb.WriteString("- A mix of movies and TV series.\n")
	}
	if f.Genre != "" {
		fmt.Fprintf(&sb, "- Genre: %s.\n", f.Genre)
	}
	if f.Mood != "" {
		fmt.Fprintf(&sb, "- Mood: %s.\n", f.Mood)
	}
	sb.WriteString("- At most one entry per franchise.\n")
	sb.WriteString("- Prefer lesser-known discoveries over obvious mainstream picks.\n")
	sb.WriteString("- The release year must be the exact original release year.\n")
	sb.WriteString("- Never include database or catalog identifiers of any kind.\n\n")

	if rows := exclusionTable(exclusions); len(rows) > 0 {
		sb.WriteString("Do NOT recommend any of the following titles; the viewer has already watched, queued, or rejected them:\n")
		sb.WriteString("Title | Year\n")
		for _, row := range rows {
			sb.WriteString(row)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}

	sb.WriteString(`Respond with ONLY a JSON array of objects, no other text. Each object has exactly these keys: "title", "mediaType" ("movie" or "tv"), "releaseYear", "reason" (one short sentence on why it fits the profile).`)

	return sb.String()
}

// exclusionTable renders "Title | Year" rows, deduplicated case-insensitively.
func exclusionTable(exclusions []Entry) []string {
	seen := make(map[string]struct{}, len(exclusions))
	rows := make([]string, 0, len(exclusions))
	for _, e := range exclusions {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title) + "|" + e.Year
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		year := e.Year
		if year == "" {
			year = "?"
		}
		rows = append(rows, title+" | "+year)
	}
	return rows
}
