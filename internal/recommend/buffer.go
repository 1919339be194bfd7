package recommend

import (
	"sync"
	"time"

	"suggestd/internal/catalog"
)

const bufferTTL = 30 * time.Minute

// bufferKey scopes buffered recommendations to one user and one filter
// combination. A different filter set is a different conversation with the
// generator, so its surplus must not leak into other pages.
type bufferKey struct {
	UserKey   string
	MediaType string
	Genre     string
	Mood      string
}

type bufferEntry struct {
	items    []catalog.EnrichedItem
	storedAt time.Time
}

// Buffer holds verified recommendations that didn't fit on the served page,
// so the next request for the same key starts from them instead of a fresh
// generator round. Entries expire after a TTL; concurrent writers for the
// same key follow last-writer-wins.
type Buffer struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[bufferKey]bufferEntry
}

// NewBuffer creates a Buffer with the default TTL.
func NewBuffer() *Buffer {
	return newBuffer(bufferTTL, time.Now)
}

// NewBufferWithTTL creates a Buffer with a custom TTL. Non-positive values
// fall back to the default.
func NewBufferWithTTL(ttl time.Duration) *Buffer {
	if ttl <= 0 {
		ttl = bufferTTL
	}
	return newBuffer(ttl, time.Now)
}

func newBuffer(ttl time.Duration, now func() time.Time) *Buffer {
	return &Buffer{
		ttl:     ttl,
		now:     now,
		entries: make(map[bufferKey]bufferEntry),
	}
}

// Take removes and returns the buffered items for key. Expired or missing
// entries yield nil.
func (b *Buffer) Take(key bufferKey) []catalog.EnrichedItem {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil
	}
	delete(b.entries, key)
	if b.now().Sub(entry.storedAt) > b.ttl {
		return nil
	}
	return entry.items
}

// Put stores surplus items under key, replacing whatever was there. An
// empty slice clears the entry.
func (b *Buffer) Put(key bufferKey, items []catalog.EnrichedItem) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(items) == 0 {
		delete(b.entries, key)
		return
	}
	b.entries[key] = bufferEntry{items: items, storedAt: b.now()}
}
