package recommend

import (
	"sort"
	"strconv"

	"suggestd/internal/catalog"
	"suggestd/internal/mediaserver"
)

// heuristicRatingFloor is the minimum community rating for a watch-history
// title to qualify as a fallback pick.
const heuristicRatingFloor = 7.0

// fallbackFromHistory serves the user's best-rated watched titles when the
// generator yields nothing and the buffer is empty. Rewatch suggestions beat
// an empty page.
func fallbackFromHistory(history []mediaserver.HistoryItem, limit int) []catalog.EnrichedItem {
	candidates := make([]mediaserver.HistoryItem, 0, len(history))
	for _, h := range history {
		if h.Name == "" || h.CatalogID <= 0 || h.Rating < heuristicRatingFloor {
			continue
		}
		candidates = append(candidates, h)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Rating > candidates[j].Rating })

	// The same movie can appear in several libraries; keep the best-rated
	// entry per catalog ID.
	seen := make(map[int]bool, len(candidates))
	picks := make([]mediaserver.HistoryItem, 0, len(candidates))
	for _, c := range candidates {
		if len(picks) >= limit {
			break
		}
		if seen[c.CatalogID] {
			continue
		}
		seen[c.CatalogID] = true
		picks = append(picks, c)
	}

	items := make([]catalog.EnrichedItem, 0, len(picks))
	for _, p := range picks {
		item := catalog.EnrichedItem{
			CatalogID:   p.CatalogID,
			Title:       p.Name,
			MediaType:   p.MediaType,
			Overview:    p.Overview,
			VoteAverage: p.Rating,
		}
		if p.Year > 0 {
			item.ReleaseDate = strconv.Itoa(p.Year)
		}
		items = append(items, item)
	}
	return items
}
