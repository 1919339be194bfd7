package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// List names for user-curated catalog ID lists.
const (
	ListWatched   = "watched"
	ListWatchlist = "watchlist"
	ListBlocked   = "blocked"
)

// ListItem is one entry in a user's watched/watchlist/blocked list.
type ListItem struct {
	UserKey     string    `json:"userKey"`
	List        string    `json:"list"`
	CatalogID   int       `json:"catalogId"`
	MediaType   string    `json:"mediaType"`
	Title       string    `json:"title"`
	ReleaseYear string    `json:"releaseYear"`
	AddedAt     time.Time `json:"addedAt"`
}

// Profile is a user's generated taste-profile text.
type Profile struct {
	UserKey   string
	Summary   string
	UpdatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
