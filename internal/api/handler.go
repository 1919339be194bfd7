package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"suggestd/internal/catalog"
	"suggestd/internal/exclusions"
	"suggestd/internal/mediaserver"
	"suggestd/internal/profile"
	"suggestd/internal/recommend"
	"suggestd/internal/storage"
)

// Recommender serves one page of recommendations. Implemented by
// recommend.Orchestrator.
type Recommender interface {
	Recommend(ctx context.Context, media exclusions.HistoryFetcher, req recommend.Request) ([]catalog.EnrichedItem, error)
}

// MediaRequester forwards download requests to the catalog service.
// Implemented by catalog.Client.
type MediaRequester interface {
	RequestMedia(ctx context.Context, mediaID int, mediaType string) error
}

// AppDeps holds the wired dependencies of the HTTP surface.
type AppDeps struct {
	Store       *storage.Store
	Media       *mediaserver.Client
	Catalog     MediaRequester
	Recommender Recommender
	Profiles    *profile.Manager
}

// NewHandler returns the REST API router.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/auth/login", handleLogin(deps))

	r.Group(func(r chi.Router) {
		r.Use(SessionAuth)

		r.Get("/recommendations", handleRecommendations(deps))

		for _, list := range []string{storage.ListWatched, storage.ListWatchlist, storage.ListBlocked} {
			r.Get("/"+list, handleGetList(deps, list))
			r.Post("/"+list, handleAddListItem(deps, list))
			r.Delete("/"+list+"/{id}", handleRemoveListItem(deps, list))
		}

		r.Post("/requests", handleRequestMedia(deps))
		r.Get("/profile", handleGetProfile(deps))
		r.Post("/profile/refresh", handleRefreshProfile(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ServerURL string `json:"serverUrl"`
}

func handleLogin(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Username == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "username is required")
			return
		}

		sess, err := deps.Media.WithBaseURL(req.ServerURL).Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, mediaserver.ErrAuthExpired) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid username or password")
			return
		}
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "media server login failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sess)
	}
}

// recommendationItem is the wire shape of one served recommendation.
type recommendationItem struct {
	TmdbID      int     `json:"tmdbId"`
	Title       string  `json:"title"`
	MediaType   string  `json:"mediaType"`
	ReleaseYear string  `json:"releaseYear,omitempty"`
	Overview    string  `json:"overview,omitempty"`
	PosterURL   string  `json:"posterUrl,omitempty"`
	BackdropURL string  `json:"backdropUrl,omitempty"`
	VoteAverage float64 `json:"voteAverage,omitempty"`
}

func handleRecommendations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		q := r.URL.Query()

		req := recommend.Request{
			Creds:   sess.Creds,
			UserKey: sess.UserKey(),
		}
		req.Filters.MediaType = q.Get("type")
		req.Filters.Genre = q.Get("genre")
		req.Filters.Mood = q.Get("mood")

		media := deps.Media.WithBaseURL(sess.ServerURL)
		items, err := deps.Recommender.Recommend(r.Context(), media, req)
		if errors.Is(err, mediaserver.ErrAuthExpired) {
			httpError(w, http.StatusUnauthorized, "auth_expired", "media server session expired, sign in again")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recommendation run failed")
			return
		}

		out := make([]recommendationItem, len(items))
		for i, item := range items {
			out[i] = recommendationItem{
				TmdbID:      item.CatalogID,
				Title:       item.Title,
				MediaType:   item.MediaType,
				ReleaseYear: item.ReleaseYear(),
				Overview:    item.Overview,
				PosterURL:   item.PosterURL,
				BackdropURL: item.BackdropURL,
				VoteAverage: item.VoteAverage,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGetList(deps AppDeps, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.GetListItems(sessionFrom(r).UserKey(), list)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read %s list: %v", list, err)
			return
		}
		if items == nil {
			items = []storage.ListItem{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(items)
	}
}

type listItemRequest struct {
	CatalogID   int    `json:"catalogId"`
	Title       string `json:"title"`
	MediaType   string `json:"mediaType"`
	ReleaseYear string `json:"releaseYear"`
}

func handleAddListItem(deps AppDeps, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req listItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.CatalogID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "catalogId is required and must be positive")
			return
		}

		item := storage.ListItem{
			UserKey:     sessionFrom(r).UserKey(),
			List:        list,
			CatalogID:   req.CatalogID,
			MediaType:   req.MediaType,
			Title:       req.Title,
			ReleaseYear: req.ReleaseYear,
			AddedAt:     time.Now().UTC(),
		}
		if err := deps.Store.AddListItem(item); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to add to %s list: %v", list, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "added"})
	}
}

func handleRemoveListItem(deps AppDeps, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := parseIntParam(chi.URLParam(r, "id"))
		if id <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "id must be a positive integer")
			return
		}

		err := deps.Store.RemoveListItem(sessionFrom(r).UserKey(), list, id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "item not in %s list", list)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to remove from %s list: %v", list, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "removed"})
	}
}

type mediaRequest struct {
	MediaID   int    `json:"mediaId"`
	MediaType string `json:"mediaType"`
}

func handleRequestMedia(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req mediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.MediaID <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "mediaId is required and must be positive")
			return
		}
		if req.MediaType == "" {
			req.MediaType = "movie"
		}

		if err := deps.Catalog.RequestMedia(r.Context(), req.MediaID, req.MediaType); err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "catalog request failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "requested"})
	}
}

func handleGetProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userKey := sessionFrom(r).UserKey()
		p, err := deps.Store.GetProfile(userKey)
		if errors.Is(err, storage.ErrNotFound) {
			p = storage.Profile{UserKey: userKey}
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read profile: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"summary":   p.Summary,
			"updatedAt": p.UpdatedAt,
		})
	}
}

func handleRefreshProfile(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		// A forced refresh wants the freshest signal; a history fetch
		// failure still queues the job, just with an empty sample.
		media := deps.Media.WithBaseURL(sess.ServerURL)
		history, err := media.GetWatchedItems(r.Context(), sess.Creds)
		if errors.Is(err, mediaserver.ErrAuthExpired) {
			httpError(w, http.StatusUnauthorized, "auth_expired", "media server session expired, sign in again")
			return
		}

		deps.Profiles.ForceRefresh(sess.UserKey(), history)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}
}

func parseIntParam(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
