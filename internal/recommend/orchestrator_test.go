package recommend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"suggestd/internal/catalog"
	"suggestd/internal/exclusions"
	"suggestd/internal/generator"
	"suggestd/internal/mediaserver"
	"suggestd/internal/storage"
)

// mockMedia implements exclusions.HistoryFetcher.
type mockMedia struct {
	history    []mediaserver.HistoryItem
	owned      map[string]struct{}
	historyErr error
}

func (m *mockMedia) GetWatchedItems(ctx context.Context, creds mediaserver.Credentials) ([]mediaserver.HistoryItem, error) {
	return m.history, m.historyErr
}

func (m *mockMedia) GetOwnedKeys(ctx context.Context, creds mediaserver.Credentials) (map[string]struct{}, error) {
	return m.owned, nil
}

// mockLists implements exclusions.ListStore.
type mockLists struct {
	items map[string][]storage.ListItem
}

func (m *mockLists) GetListItems(userKey, list string) ([]storage.ListItem, error) {
	return m.items[list], nil
}

// mockGen returns one queued candidate batch per Generate call.
type mockGen struct {
	batches [][]generator.Candidate
	calls   int
}

func (m *mockGen) Generate(ctx context.Context, profileText string, exclusions []generator.Entry, f generator.Filters) []generator.Candidate {
	m.calls++
	if len(m.batches) == 0 {
		return nil
	}
	batch := m.batches[0]
	m.batches = m.batches[1:]
	return batch
}

// mockVerifier resolves titles from a fixed table, keyed case-insensitively.
type mockVerifier struct {
	items map[string]catalog.EnrichedItem
	calls []string
}

func (m *mockVerifier) Verify(ctx context.Context, rawTitle, hintedType, hintedYear string) *catalog.EnrichedItem {
	m.calls = append(m.calls, rawTitle)
	item, ok := m.items[strings.ToLower(rawTitle)]
	if !ok {
		return nil
	}
	return &item
}

type mockProfiles struct {
	text         string
	ensuredUsers []string
}

func (m *mockProfiles) Get(userKey string) string { return m.text }

func (m *mockProfiles) EnsureFresh(userKey string, history []mediaserver.HistoryItem) {
	m.ensuredUsers = append(m.ensuredUsers, userKey)
}

func candidate(title, mediaType, year string) generator.Candidate {
	return generator.Candidate{Title: title, MediaType: mediaType, ReleaseYear: year}
}

func verified(id int, title, mediaType, releaseDate string) catalog.EnrichedItem {
	return catalog.EnrichedItem{CatalogID: id, Title: title, MediaType: mediaType, ReleaseDate: releaseDate}
}

func newTestOrchestrator(media *mockMedia, lists *mockLists, gen *mockGen, ver *mockVerifier) (*Orchestrator, *Buffer) {
	if lists == nil {
		lists = &mockLists{}
	}
	buf := NewBuffer()
	o := NewOrchestrator(exclusions.NewBuilder(lists), gen, ver, &mockProfiles{}, buf)
	return o, buf
}

func TestRecommendExcludesWatchedAndWatchlist(t *testing.T) {
	media := &mockMedia{history: []mediaserver.HistoryItem{
		{Name: "Fight Club", MediaType: "movie", Year: 1999, CatalogID: 550},
	}}
	lists := &mockLists{items: map[string][]storage.ListItem{
		storage.ListWatchlist: {{CatalogID: 680, Title: "Pulp Fiction", MediaType: "movie", ReleaseYear: "1994"}},
	}}
	gen := &mockGen{batches: [][]generator.Candidate{{
		candidate("Fight Club", "movie", "1999"),
		candidate("Pulp Fiction", "movie", "1994"),
		candidate("Heat", "movie", "1995"),
	}}}
	ver := &mockVerifier{items: map[string]catalog.EnrichedItem{
		"fight club":   verified(550, "Fight Club", "movie", "1999-10-15"),
		"pulp fiction": verified(680, "Pulp Fiction", "movie", "1994-09-10"),
		"heat":         verified(949, "Heat", "movie", "1995-12-15"),
	}}
	o, _ := newTestOrchestrator(media, lists, gen, ver)

	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(page) != 1 || page[0].CatalogID != 949 {
		t.Fatalf("page = %+v, want only Heat (949)", page)
	}
}

func TestRecommendNoDuplicateIDs(t *testing.T) {
	media := &mockMedia{}
	// Two generated titles resolve to the same catalog item.
	gen := &mockGen{batches: [][]generator.Candidate{{
		candidate("Heat", "movie", "1995"),
		candidate("Heat (1995)", "movie", "1995"),
	}}}
	ver := &mockVerifier{items: map[string]catalog.EnrichedItem{
		"heat":        verified(949, "Heat", "movie", "1995-12-15"),
		"heat (1995)": verified(949, "Heat", "movie", "1995-12-15"),
	}}
	o, _ := newTestOrchestrator(media, nil, gen, ver)

	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("page has %d items, want 1: %+v", len(page), page)
	}
}

func TestRecommendSkipsEmptyTitles(t *testing.T) {
	media := &mockMedia{}
	gen := &mockGen{batches: [][]generator.Candidate{{
		candidate("", "movie", "2001"),
		candidate("Heat", "movie", "1995"),
	}}}
	ver := &mockVerifier{items: map[string]catalog.EnrichedItem{
		"heat": verified(949, "Heat", "movie", "1995-12-15"),
	}}
	o, _ := newTestOrchestrator(media, nil, gen, ver)

	if _, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"}); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	for _, title := range ver.calls {
		if title == "" {
			t.Error("verifier called with an empty title")
		}
	}
}

func TestRecommendPageSizeAndCarryOver(t *testing.T) {
	items := map[string]catalog.EnrichedItem{}
	var batch []generator.Candidate
	titles := []string{
		"Heat", "Ran", "Seven", "Alien", "Amelie", "Brazil", "Chinatown",
		"Dune", "Fargo", "Gattaca", "Klute", "Laura", "Memento",
	}
	for i, title := range titles {
		batch = append(batch, candidate(title, "movie", "1999"))
		items[strings.ToLower(title)] = verified(1000+i, title, "movie", "1999-01-01")
	}
	media := &mockMedia{}
	gen := &mockGen{batches: [][]generator.Candidate{batch}}
	ver := &mockVerifier{items: items}
	o, _ := newTestOrchestrator(media, nil, gen, ver)

	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(page) != 10 {
		t.Fatalf("first page has %d items, want 10", len(page))
	}

	// The surplus 3 must be served next, without another generator round
	// producing anything.
	next, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("second Recommend: %v", err)
	}
	if len(next) != 3 {
		t.Fatalf("second page has %d items, want 3", len(next))
	}
	seen := make(map[int]bool)
	for _, item := range append(page, next...) {
		if seen[item.CatalogID] {
			t.Errorf("catalog ID %d served twice across pages", item.CatalogID)
		}
		seen[item.CatalogID] = true
	}
}

func TestRecommendBoundedGeneratorRounds(t *testing.T) {
	media := &mockMedia{}
	gen := &mockGen{} // every round yields nothing
	ver := &mockVerifier{}
	o, _ := newTestOrchestrator(media, nil, gen, ver)

	if _, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"}); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if gen.calls != defaultMaxAttempts {
		t.Errorf("generator called %d times, want %d", gen.calls, defaultMaxAttempts)
	}
}

func TestRecommendFallsBackToHistoryPicks(t *testing.T) {
	media := &mockMedia{history: []mediaserver.HistoryItem{
		{Name: "Heat", MediaType: "movie", Year: 1995, CatalogID: 949, Rating: 8.3},
		{Name: "Gigli", MediaType: "movie", Year: 2003, CatalogID: 10708, Rating: 4.0},
		{Name: "Ran", MediaType: "movie", Year: 1985, CatalogID: 11645, Rating: 8.1},
	}}
	gen := &mockGen{}
	o, _ := newTestOrchestrator(media, nil, gen, &mockVerifier{})

	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("fallback page = %+v, want the two highly rated titles", page)
	}
	if page[0].CatalogID != 949 || page[1].CatalogID != 11645 {
		t.Errorf("fallback order = [%d %d], want [949 11645]", page[0].CatalogID, page[1].CatalogID)
	}
}

func TestRecommendAuthExpiredPropagates(t *testing.T) {
	media := &mockMedia{historyErr: mediaserver.ErrAuthExpired}
	o, _ := newTestOrchestrator(media, nil, &mockGen{}, &mockVerifier{})

	_, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if !errors.Is(err, mediaserver.ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
}

func TestRecommendBufferedItemsRecheckedAgainstExclusions(t *testing.T) {
	media := &mockMedia{history: []mediaserver.HistoryItem{
		{Name: "Heat", MediaType: "movie", Year: 1995, CatalogID: 949},
	}}
	gen := &mockGen{batches: [][]generator.Candidate{{
		candidate("Ran", "movie", "1985"),
	}}}
	ver := &mockVerifier{items: map[string]catalog.EnrichedItem{
		"ran": verified(11645, "Ran", "movie", "1985-06-01"),
	}}
	o, buf := newTestOrchestrator(media, nil, gen, ver)

	// Heat was buffered before the user watched it.
	buf.Put(bufferKey{UserKey: "u1"}, []catalog.EnrichedItem{
		verified(949, "Heat", "movie", "1995-12-15"),
	})

	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	for _, item := range page {
		if item.CatalogID == 949 {
			t.Error("stale buffered item served despite now being watched")
		}
	}
}

func TestRecommendScopesBufferByFilters(t *testing.T) {
	media := &mockMedia{}
	gen := &mockGen{}
	o, buf := newTestOrchestrator(media, nil, gen, &mockVerifier{})

	buf.Put(bufferKey{UserKey: "u1", Genre: "horror"}, []catalog.EnrichedItem{
		verified(694, "The Shining", "movie", "1980-05-23"),
	})

	// A request without the horror filter must not drain that entry.
	page, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("page = %+v, want empty", page)
	}
	horror, err := o.Recommend(context.Background(), media, Request{
		UserKey: "u1",
		Filters: generator.Filters{Genre: "horror"},
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(horror) != 1 || horror[0].CatalogID != 694 {
		t.Fatalf("horror page = %+v, want The Shining", horror)
	}
}

func TestRecommendPassesExclusionsToGenerator(t *testing.T) {
	var captured []generator.Entry
	gen := &capturingGen{entries: &captured}
	media := &mockMedia{history: []mediaserver.HistoryItem{
		{Name: "Heat", MediaType: "movie", Year: 1995, CatalogID: 949},
	}}
	o, _ := newTestOrchestrator(media, nil, nil, &mockVerifier{})
	o.gen = gen

	if _, err := o.Recommend(context.Background(), media, Request{UserKey: "u1"}); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	found := false
	for _, e := range captured {
		if e.Title == "Heat" && e.Year == "1995" {
			found = true
		}
	}
	if !found {
		t.Errorf("generator prompt entries %+v missing watched title", captured)
	}
}

type capturingGen struct {
	entries *[]generator.Entry
}

func (g *capturingGen) Generate(ctx context.Context, profileText string, exclusions []generator.Entry, f generator.Filters) []generator.Candidate {
	*g.entries = append([]generator.Entry{}, exclusions...)
	return nil
}
