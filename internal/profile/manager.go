// Package profile maintains per-user taste-profile text, refreshed in the
// background from watch history via the generative text service.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"suggestd/internal/mediaserver"
	"suggestd/internal/storage"
)

// JobTypeRefresh is the queue job type for taste-profile refreshes.
const JobTypeRefresh = "profile_refresh"

// minUsefulLength is the shortest profile text worth injecting into a
// prompt; anything shorter triggers a refresh.
const minUsefulLength = 40

// staleAfter is how old a profile may get before a refresh is queued.
const staleAfter = 7 * 24 * time.Hour

// likedSampleSize caps how many rated titles ride along in the refresh
// job payload.
const likedSampleSize = 30

// ratingFloor is the minimum community rating for a history entry to
// count as a liked title.
const ratingFloor = 6.5

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	GetProfile(userKey string) (storage.Profile, error)
	SetProfile(userKey, summary string) error
	EnqueueJob(job storage.Job) error
	HasPendingJob(jobType, payloadFragment string) (bool, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager reads taste profiles and schedules their refresh.
type Manager struct {
	store ProfileStore
	clock Clock
}

// NewManager creates a Manager over the given store.
func NewManager(store ProfileStore) *Manager {
	return &Manager{store: store, clock: realClock{}}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// Get returns the stored profile text for the user, or "" when none
// exists. Storage errors degrade to "" — a prompt without a profile is
// still a valid prompt.
func (m *Manager) Get(userKey string) string {
	p, err := m.store.GetProfile(userKey)
	if errors.Is(err, storage.ErrNotFound) {
		return ""
	}
	if err != nil {
		slog.Warn("reading taste profile failed", "user", userKey, "error", err)
		return ""
	}
	return p.Summary
}

// likedTitle is one entry of a refresh job's history sample.
type likedTitle struct {
	Title     string  `json:"title"`
	MediaType string  `json:"mediaType"`
	Year      int     `json:"year,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
}

// refreshPayload is the JSON payload of a profile_refresh job.
type refreshPayload struct {
	UserKey string       `json:"userKey"`
	Liked   []likedTitle `json:"liked"`
}

// EnsureFresh enqueues a refresh job when the user's profile is missing,
// too short, or stale, unless one is already queued. It never blocks the
// calling request; failures are logged and swallowed.
func (m *Manager) EnsureFresh(userKey string, history []mediaserver.HistoryItem) {
	p, err := m.store.GetProfile(userKey)
	if err == nil && len(p.Summary) >= minUsefulLength && m.clock.Now().Sub(p.UpdatedAt) < staleAfter {
		return
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.Warn("profile freshness check failed", "user", userKey, "error", err)
		return
	}
	m.enqueueRefresh(userKey, history)
}

// ForceRefresh enqueues a refresh job regardless of current freshness,
// still deduplicating against an already-pending one.
func (m *Manager) ForceRefresh(userKey string, history []mediaserver.HistoryItem) {
	m.enqueueRefresh(userKey, history)
}

func (m *Manager) enqueueRefresh(userKey string, history []mediaserver.HistoryItem) {
	fragment := fmt.Sprintf("%q:%q", "userKey", userKey)
	pending, err := m.store.HasPendingJob(JobTypeRefresh, fragment)
	if err != nil {
		slog.Warn("pending job check failed", "user", userKey, "error", err)
		return
	}
	if pending {
		return
	}

	payload, err := json.Marshal(refreshPayload{
		UserKey: userKey,
		Liked:   sampleLiked(history),
	})
	if err != nil {
		slog.Warn("marshalling refresh payload failed", "user", userKey, "error", err)
		return
	}

	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobTypeRefresh,
		PayloadJSON: string(payload),
	}
	if err := m.store.EnqueueJob(job); err != nil {
		slog.Warn("enqueuing profile refresh failed", "user", userKey, "error", err)
		return
	}
	slog.Debug("profile refresh queued", "user", userKey, "liked_titles", len(history))
}

// sampleLiked returns the highest-rated history entries, capped at
// likedSampleSize.
func sampleLiked(history []mediaserver.HistoryItem) []likedTitle {
	liked := make([]likedTitle, 0, len(history))
	for _, item := range history {
		if item.Name == "" || item.Rating < ratingFloor {
			continue
		}
		liked = append(liked, likedTitle{
			Title:     item.Name,
			MediaType: item.MediaType,
			Year:      item.Year,
			Rating:    item.Rating,
		})
	}
	sort.Slice(liked, func(i, j int) bool { return liked[i].Rating > liked[j].Rating })
	if len(liked) > likedSampleSize {
		liked = liked[:likedSampleSize]
	}
	return liked
}
