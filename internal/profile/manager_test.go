package profile

import (
	"strings"
	"testing"
	"time"

	"suggestd/internal/mediaserver"
	"suggestd/internal/storage"
)

// mockStore implements ProfileStore for testing.
type mockStore struct {
	profile    storage.Profile
	profileErr error
	pending    bool
	enqueued   []storage.Job
}

func (m *mockStore) GetProfile(userKey string) (storage.Profile, error) {
	if m.profileErr != nil {
		return storage.Profile{}, m.profileErr
	}
	return m.profile, nil
}

func (m *mockStore) SetProfile(userKey, summary string) error { return nil }

func (m *mockStore) EnqueueJob(job storage.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockStore) HasPendingJob(jobType, payloadFragment string) (bool, error) {
	return m.pending, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var longSummary = strings.Repeat("Likes heist thrillers. ", 5)

func TestGetMissingProfile(t *testing.T) {
	m := NewManager(&mockStore{profileErr: storage.ErrNotFound})
	if got := m.Get("alice"); got != "" {
		t.Errorf("Get = %q, want empty for missing profile", got)
	}
}

func TestEnsureFreshSkipsRecentProfile(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &mockStore{profile: storage.Profile{
		Summary:   longSummary,
		UpdatedAt: now.Add(-time.Hour),
	}}
	m := NewManagerWithClock(store, fixedClock{now})

	m.EnsureFresh("alice", nil)
	if len(store.enqueued) != 0 {
		t.Errorf("enqueued %d jobs for a fresh profile, want 0", len(store.enqueued))
	}
}

func TestEnsureFreshEnqueuesForMissingProfile(t *testing.T) {
	store := &mockStore{profileErr: storage.ErrNotFound}
	m := NewManager(store)

	m.EnsureFresh("alice", []mediaserver.HistoryItem{
		{Name: "Heat", Rating: 8.3, Year: 1995, MediaType: "movie"},
	})

	if len(store.enqueued) != 1 {
		t.Fatalf("enqueued %d jobs, want 1", len(store.enqueued))
	}
	job := store.enqueued[0]
	if job.Type != JobTypeRefresh {
		t.Errorf("job type = %q", job.Type)
	}
	if !strings.Contains(job.PayloadJSON, `"userKey":"alice"`) {
		t.Errorf("payload missing user key: %s", job.PayloadJSON)
	}
	if !strings.Contains(job.PayloadJSON, "Heat") {
		t.Errorf("payload missing liked title: %s", job.PayloadJSON)
	}
}

func TestEnsureFreshEnqueuesForShortProfile(t *testing.T) {
	store := &mockStore{profile: storage.Profile{Summary: "likes films", UpdatedAt: time.Now()}}
	m := NewManager(store)

	m.EnsureFresh("alice", nil)
	if len(store.enqueued) != 1 {
		t.Errorf("enqueued %d jobs for a too-short profile, want 1", len(store.enqueued))
	}
}

func TestEnsureFreshEnqueuesForStaleProfile(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	store := &mockStore{profile: storage.Profile{
		Summary:   longSummary,
		UpdatedAt: now.Add(-30 * 24 * time.Hour),
	}}
	m := NewManagerWithClock(store, fixedClock{now})

	m.EnsureFresh("alice", nil)
	if len(store.enqueued) != 1 {
		t.Errorf("enqueued %d jobs for a stale profile, want 1", len(store.enqueued))
	}
}

func TestEnsureFreshSkipsWhenJobPending(t *testing.T) {
	store := &mockStore{profileErr: storage.ErrNotFound, pending: true}
	m := NewManager(store)

	m.EnsureFresh("alice", nil)
	if len(store.enqueued) != 0 {
		t.Errorf("enqueued %d jobs while one was pending, want 0", len(store.enqueued))
	}
}

func TestSampleLikedFiltersAndSorts(t *testing.T) {
	history := []mediaserver.HistoryItem{
		{Name: "Mediocre", Rating: 5.0},
		{Name: "Great", Rating: 8.9},
		{Name: "Good", Rating: 7.1},
		{Name: "", Rating: 9.0},
	}

	liked := sampleLiked(history)
	if len(liked) != 2 {
		t.Fatalf("got %d liked titles, want 2", len(liked))
	}
	if liked[0].Title != "Great" || liked[1].Title != "Good" {
		t.Errorf("liked order = %v, want rating-descending", liked)
	}
}

func TestSampleLikedCapped(t *testing.T) {
	history := make([]mediaserver.HistoryItem, 100)
	for i := range history {
		history[i] = mediaserver.HistoryItem{Name: "Title", Rating: 8.0}
	}
	if got := len(sampleLiked(history)); got != likedSampleSize {
		t.Errorf("sample size = %d, want %d", got, likedSampleSize)
	}
}
