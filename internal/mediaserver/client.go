// Package mediaserver talks to a Jellyfin-compatible media server for
// authentication, watch history, and library snapshots.
package mediaserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrAuthExpired is returned when the media server rejects the access token.
// The HTTP layer maps it to 401 with a machine-readable code.
var ErrAuthExpired = errors.New("media server access token expired or invalid")

const authHeader = `MediaBrowser Client="suggestd", Device="server", DeviceId="suggestd", Version="1.0"`

// Session identifies an authenticated media-server user.
type Session struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
}

// Credentials carry a user's token for per-request API calls.
type Credentials struct {
	UserID      string
	AccessToken string
}

// HistoryItem is one watched (or owned) library entry.
type HistoryItem struct {
	Name      string
	MediaType string // "movie" or "tv"
	Year      int
	CatalogID int // TMDB provider ID; 0 when the server has no mapping
	Rating    float64
	Overview  string
}

// Client communicates with a Jellyfin-compatible server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given media-server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithBaseURL returns a copy of the client targeting a different server.
// Used for the per-request media-server URL override header.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL == "" {
		return c
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c.httpClient,
	}
}

// authenticateResponse mirrors the JSON returned by POST /Users/AuthenticateByName.
type authenticateResponse struct {
	AccessToken string `json:"AccessToken"`
	User        struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
	} `json:"User"`
}

// Authenticate logs a user in by name and password.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{"Username": username, "Pw": password})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Users/AuthenticateByName", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("creating auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Emby-Authorization", authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Session{}, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("auth: unexpected status %d", resp.StatusCode)
	}

	var result authenticateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Session{}, fmt.Errorf("decoding auth response: %w", err)
	}

	return Session{
		AccessToken: result.AccessToken,
		UserID:      result.User.ID,
		UserName:    result.User.Name,
	}, nil
}

// itemsResponse mirrors the JSON returned by GET /Users/{id}/Items.
type itemsResponse struct {
	Items []itemEntry `json:"Items"`
}

type itemEntry struct {
	Name            string            `json:"Name"`
	Type            string            `json:"Type"`
	ProductionYear  int               `json:"ProductionYear"`
	CommunityRating float64           `json:"CommunityRating"`
	Overview        string            `json:"Overview"`
	ProviderIDs     map[string]string `json:"ProviderIds"`
}

// GetWatchedItems returns the user's played movies and series.
func (c *Client) GetWatchedItems(ctx context.Context, creds Credentials) ([]HistoryItem, error) {
	return c.getItems(ctx, creds, url.Values{
		"IncludeItemTypes": {"Movie,Series"},
		"Recursive":        {"true"},
		"Filters":          {"IsPlayed"},
	})
}

// GetOwnedKeys returns a set of keys identifying every movie/series in the
// user's library, in "catalog:<id>" form when the server carries a TMDB
// provider ID and "titleyear:<norm-title>::<year>" form otherwise.
func (c *Client) GetOwnedKeys(ctx context.Context, creds Credentials) (map[string]struct{}, error) {
	items, err := c.getItems(ctx, creds, url.Values{
		"IncludeItemTypes": {"Movie,Series"},
		"Recursive":        {"true"},
	})
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.CatalogID > 0 {
			keys[fmt.Sprintf("catalog:%d", item.CatalogID)] = struct{}{}
			continue
		}
		if item.Name == "" {
			continue
		}
		norm := strings.ToLower(strings.TrimSpace(item.Name))
		keys[fmt.Sprintf("titleyear:%s::%d", norm, item.Year)] = struct{}{}
	}
	return keys, nil
}

func (c *Client) getItems(ctx context.Context, creds Credentials, params url.Values) ([]HistoryItem, error) {
	endpoint := fmt.Sprintf("%s/Users/%s/Items?%s", c.baseURL, url.PathEscape(creds.UserID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating items request: %w", err)
	}
	req.Header.Set("X-Emby-Token", creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("items request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("items: unexpected status %d", resp.StatusCode)
	}

	var result itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding items response: %w", err)
	}

	items := make([]HistoryItem, 0, len(result.Items))
	for _, entry := range result.Items {
		item := HistoryItem{
			Name:      entry.Name,
			MediaType: "movie",
			Year:      entry.ProductionYear,
			Rating:    entry.CommunityRating,
			Overview:  entry.Overview,
		}
		if entry.Type == "Series" {
			item.MediaType = "tv"
		}
		if raw, ok := entry.ProviderIDs["Tmdb"]; ok {
			if id, err := strconv.Atoi(raw); err == nil {
				item.CatalogID = id
			}
		}
		items = append(items, item)
	}
	return items, nil
}
