// Package catalog talks to a Jellyseerr-compatible request-management
// service and verifies generator candidates against its search index.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const imageBaseURL = "https://image.tmdb.org/t/p/w500"

// EnrichedItem is a verified candidate with its canonical catalog ID and
// display metadata.
type EnrichedItem struct {
	CatalogID   int     `json:"catalogId"`
	Title       string  `json:"title"`
	MediaType   string  `json:"mediaType"`
	ReleaseDate string  `json:"releaseDate"`
	Overview    string  `json:"overview,omitempty"`
	PosterURL   string  `json:"posterUrl,omitempty"`
	BackdropURL string  `json:"backdropUrl,omitempty"`
	VoteAverage float64 `json:"voteAverage,omitempty"`
}

// ReleaseYear returns the four-digit year of ReleaseDate, or "" when the
// date is missing or too short.
func (e EnrichedItem) ReleaseYear() string {
	if len(e.ReleaseDate) < 4 {
		return ""
	}
	return e.ReleaseDate[:4]
}

// SearchResult is one row of the catalog's free-text search response.
type SearchResult struct {
	ID           int     `json:"id"`
	MediaType    string  `json:"mediaType"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"releaseDate"`
	FirstAirDate string  `json:"firstAirDate"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"posterPath"`
	BackdropPath string  `json:"backdropPath"`
	VoteAverage  float64 `json:"voteAverage"`
}

// DisplayTitle returns the movie title or series name, whichever is set.
func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year returns the four-digit release year, or "" when unknown.
func (r SearchResult) Year() string {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// Client communicates with the catalog service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client targeting the given catalog service base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// searchResponse mirrors the JSON returned by GET /api/v1/search.
type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search issues a free-text search and returns the ranked result list.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/search?query=%s&page=1", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return result.Results, nil
}

// RequestMedia submits a download request for the given catalog item.
func (c *Client) RequestMedia(ctx context.Context, mediaID int, mediaType string) error {
	body, err := json.Marshal(map[string]any{
		"mediaId":   mediaID,
		"mediaType": mediaType,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/request", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("submitting request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request media %d: unexpected status %d", mediaID, resp.StatusCode)
	}
	return nil
}
