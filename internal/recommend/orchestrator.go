package recommend

import (
	"context"
	"log/slog"

	"suggestd/internal/catalog"
	"suggestd/internal/exclusions"
	"suggestd/internal/generator"
	"suggestd/internal/mediaserver"
)

const (
	defaultPageSize    = 10
	defaultMaxAttempts = 3
)

// CandidateGenerator produces raw title candidates. Implemented by
// generator.Generator.
type CandidateGenerator interface {
	Generate(ctx context.Context, profileText string, exclusions []generator.Entry, f generator.Filters) []generator.Candidate
}

// ItemVerifier resolves a raw title to a verified catalog item. Implemented
// by catalog.Verifier.
type ItemVerifier interface {
	Verify(ctx context.Context, rawTitle, hintedType, hintedYear string) *catalog.EnrichedItem
}

// ProfileSource supplies taste profiles and schedules their refresh.
// Implemented by profile.Manager.
type ProfileSource interface {
	Get(userKey string) string
	EnsureFresh(userKey string, history []mediaserver.HistoryItem)
}

// ExclusionBuilder assembles the per-request exclusion set. Implemented by
// exclusions.Builder.
type ExclusionBuilder interface {
	Build(ctx context.Context, media exclusions.HistoryFetcher, creds mediaserver.Credentials, userKey string, browsed []exclusions.TitleYear) (exclusions.Result, error)
}

// Orchestrator runs the recommendation round trip: exclusions, buffered
// carry-over, bounded generate/verify rounds, and surplus buffering.
type Orchestrator struct {
	builder     ExclusionBuilder
	gen         CandidateGenerator
	verifier    ItemVerifier
	profiles    ProfileSource
	buffer      *Buffer
	pageSize    int
	maxAttempts int
	logger      *slog.Logger
}

// NewOrchestrator wires an Orchestrator with default page size and attempt
// bound.
func NewOrchestrator(builder ExclusionBuilder, gen CandidateGenerator, verifier ItemVerifier, profiles ProfileSource, buffer *Buffer) *Orchestrator {
	return &Orchestrator{
		builder:     builder,
		gen:         gen,
		verifier:    verifier,
		profiles:    profiles,
		buffer:      buffer,
		pageSize:    defaultPageSize,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}
}

// WithLimits overrides page size and the generate-round bound. Zero values
// keep the current setting.
func (o *Orchestrator) WithLimits(pageSize, maxAttempts int) *Orchestrator {
	if pageSize > 0 {
		o.pageSize = pageSize
	}
	if maxAttempts > 0 {
		o.maxAttempts = maxAttempts
	}
	return o
}

// Request carries everything one recommendation page needs.
type Request struct {
	Creds   mediaserver.Credentials
	UserKey string
	Filters generator.Filters
	// Browsed is the catalog page the user is currently looking at, so
	// visible titles aren't recommended back to them.
	Browsed []exclusions.TitleYear
}

// Recommend serves one page of verified recommendations for req. Upstream
// failures degrade to smaller or heuristic pages; only an expired
// media-server token surfaces as an error.
func (o *Orchestrator) Recommend(ctx context.Context, media exclusions.HistoryFetcher, req Request) ([]catalog.EnrichedItem, error) {
	res, err := o.builder.Build(ctx, media, req.Creds, req.UserKey, req.Browsed)
	if err != nil {
		return nil, err
	}
	set := res.Set

	o.profiles.EnsureFresh(req.UserKey, res.History)
	profileText := o.profiles.Get(req.UserKey)

	key := bufferKey{
		UserKey:   req.UserKey,
		MediaType: req.Filters.MediaType,
		Genre:     req.Filters.Genre,
		Mood:      req.Filters.Mood,
	}

	// Buffered surplus from the previous page goes first, re-checked
	// against today's exclusions: the user may have watched one of these
	// since it was buffered.
	var page []catalog.EnrichedItem
	for _, item := range o.buffer.Take(key) {
		if set.Contains(item.CatalogID) {
			continue
		}
		page = append(page, item)
		set.Add(item.CatalogID)
		set.AddTitleYear(item.Title, item.ReleaseYear())
	}

	for attempt := 0; len(page) < o.pageSize && attempt < o.maxAttempts; attempt++ {
		candidates := o.gen.Generate(ctx, profileText, promptEntries(set), req.Filters)
		if len(candidates) == 0 {
			continue
		}
		for _, cand := range candidates {
			if cand.Title == "" {
				continue
			}
			item := o.verifier.Verify(ctx, cand.Title, cand.MediaType, cand.ReleaseYear)
			if item == nil {
				o.logger.Debug("dropping unverifiable candidate", "title", cand.Title, "year", cand.ReleaseYear)
				continue
			}
			if set.Contains(item.CatalogID) {
				continue
			}
			page = append(page, *item)
			set.Add(item.CatalogID)
			set.AddTitleYear(item.Title, item.ReleaseYear())
		}
	}

	if len(page) == 0 {
		o.logger.Warn("generator produced nothing usable, falling back to history picks", "user", req.UserKey)
		return fallbackFromHistory(res.History, o.pageSize), nil
	}

	if len(page) > o.pageSize {
		o.buffer.Put(key, page[o.pageSize:])
		page = page[:o.pageSize]
	} else {
		o.buffer.Put(key, nil)
	}
	return page, nil
}

func promptEntries(set *exclusions.Set) []generator.Entry {
	pairs := set.TitleYears()
	entries := make([]generator.Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, generator.Entry{Title: p.Title, Year: p.Year})
	}
	return entries
}
