package recommend

import (
	"testing"
	"time"

	"suggestd/internal/catalog"
)

func TestBufferTakeDrains(t *testing.T) {
	buf := NewBuffer()
	key := bufferKey{UserKey: "u1"}
	buf.Put(key, []catalog.EnrichedItem{{CatalogID: 1, Title: "Heat"}})

	got := buf.Take(key)
	if len(got) != 1 || got[0].CatalogID != 1 {
		t.Fatalf("Take = %+v", got)
	}
	if again := buf.Take(key); again != nil {
		t.Errorf("second Take = %+v, want nil", again)
	}
}

func TestBufferExpiry(t *testing.T) {
	now := time.Now()
	buf := newBuffer(30*time.Minute, func() time.Time { return now })
	key := bufferKey{UserKey: "u1"}
	buf.Put(key, []catalog.EnrichedItem{{CatalogID: 1}})

	now = now.Add(31 * time.Minute)
	if got := buf.Take(key); got != nil {
		t.Errorf("Take after TTL = %+v, want nil", got)
	}
}

func TestBufferPutEmptyClears(t *testing.T) {
	buf := NewBuffer()
	key := bufferKey{UserKey: "u1"}
	buf.Put(key, []catalog.EnrichedItem{{CatalogID: 1}})
	buf.Put(key, nil)

	if got := buf.Take(key); got != nil {
		t.Errorf("Take = %+v, want nil after clearing", got)
	}
}

func TestBufferLastWriterWins(t *testing.T) {
	buf := NewBuffer()
	key := bufferKey{UserKey: "u1"}
	buf.Put(key, []catalog.EnrichedItem{{CatalogID: 1}})
	buf.Put(key, []catalog.EnrichedItem{{CatalogID: 2}})

	got := buf.Take(key)
	if len(got) != 1 || got[0].CatalogID != 2 {
		t.Errorf("Take = %+v, want only the second write", got)
	}
}

func TestBufferKeysAreIndependent(t *testing.T) {
	buf := NewBuffer()
	buf.Put(bufferKey{UserKey: "u1", MediaType: "movie"}, []catalog.EnrichedItem{{CatalogID: 1}})

	if got := buf.Take(bufferKey{UserKey: "u1", MediaType: "tv"}); got != nil {
		t.Errorf("Take for different filter = %+v, want nil", got)
	}
	if got := buf.Take(bufferKey{UserKey: "u2", MediaType: "movie"}); got != nil {
		t.Errorf("Take for different user = %+v, want nil", got)
	}
}
