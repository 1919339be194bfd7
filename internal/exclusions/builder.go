package exclusions

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"suggestd/internal/mediaserver"
	"suggestd/internal/storage"
)

// HistoryFetcher is the media-server surface the builder reads from.
// Implemented by mediaserver.Client.
type HistoryFetcher interface {
	GetWatchedItems(ctx context.Context, creds mediaserver.Credentials) ([]mediaserver.HistoryItem, error)
	GetOwnedKeys(ctx context.Context, creds mediaserver.Credentials) (map[string]struct{}, error)
}

// ListStore reads locally stored user lists. Implemented by storage.Store.
type ListStore interface {
	GetListItems(userKey, list string) ([]storage.ListItem, error)
}

// Builder assembles exclusion sets from the media server and local lists.
type Builder struct {
	lists ListStore
}

// NewBuilder creates a Builder over the given list store.
func NewBuilder(lists ListStore) *Builder {
	return &Builder{lists: lists}
}

// Result carries the built set plus the fetched watch history, so callers
// needing history (profile refresh, heuristic fallback) avoid a second
// round-trip.
type Result struct {
	Set     *Set
	History []mediaserver.HistoryItem
}

// Build unions every exclusion source for the user. A source that fails to
// fetch contributes nothing rather than aborting the build; only an
// expired media-server token is escalated. browsed is the catalog page the
// user is currently looking at, if any.
func (b *Builder) Build(ctx context.Context, media HistoryFetcher, creds mediaserver.Credentials, userKey string, browsed []TitleYear) (Result, error) {
	var (
		history []mediaserver.HistoryItem
		owned   map[string]struct{}
	)

	// The two media-server fetches are independent network calls; local
	// list reads stay on this goroutine.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := media.GetWatchedItems(gctx, creds)
		if err != nil {
			if errors.Is(err, mediaserver.ErrAuthExpired) {
				return err
			}
			slog.Warn("watch history fetch failed, excluding nothing from history", "error", err)
			return nil
		}
		history = items
		return nil
	})
	g.Go(func() error {
		keys, err := media.GetOwnedKeys(gctx, creds)
		if err != nil {
			if errors.Is(err, mediaserver.ErrAuthExpired) {
				return err
			}
			slog.Warn("library snapshot fetch failed, excluding nothing from library", "error", err)
			return nil
		}
		owned = keys
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	set := NewSet()

	for _, item := range history {
		set.Add(item.CatalogID)
		set.AddTitleYear(item.Name, yearString(item.Year))
	}

	for key := range owned {
		if id, ok := parseCatalogKey(key); ok {
			set.Add(id)
			continue
		}
		if title, year, ok := parseTitleYearKey(key); ok {
			set.AddTitleYear(title, year)
		}
	}

	for _, list := range []string{storage.ListWatched, storage.ListWatchlist, storage.ListBlocked} {
		items, err := b.lists.GetListItems(userKey, list)
		if err != nil {
			slog.Warn("stored list read failed, excluding nothing from it", "list", list, "error", err)
			continue
		}
		for _, item := range items {
			set.Add(item.CatalogID)
			set.AddTitleYear(item.Title, item.ReleaseYear)
		}
	}

	for _, ty := range browsed {
		set.AddTitleYear(ty.Title, ty.Year)
	}

	return Result{Set: set, History: history}, nil
}

func yearString(year int) string {
	if year <= 0 {
		return ""
	}
	return strconv.Itoa(year)
}

// parseCatalogKey extracts the ID from a "catalog:<id>" owned-library key.
func parseCatalogKey(key string) (int, bool) {
	raw, ok := strings.CutPrefix(key, "catalog:")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseTitleYearKey extracts title and year from a
// "titleyear:<norm-title>::<year>" owned-library key.
func parseTitleYearKey(key string) (title, year string, ok bool) {
	raw, found := strings.CutPrefix(key, "titleyear:")
	if !found {
		return "", "", false
	}
	title, year, found = strings.Cut(raw, "::")
	if !found || title == "" {
		return "", "", false
	}
	return title, year, true
}
