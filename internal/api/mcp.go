package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"suggestd/internal/catalog"
	"suggestd/internal/mediaserver"
	"suggestd/internal/profile"
	"suggestd/internal/recommend"
	"suggestd/internal/storage"
)

// CatalogSearcher abstracts free-text catalog search for the MCP layer.
// Implemented by catalog.Client.
type CatalogSearcher interface {
	Search(ctx context.Context, query string) ([]catalog.SearchResult, error)
}

// MCPDeps holds dependencies for the MCP server. The stdio transport is
// single-user, so the media-server session comes from configuration
// rather than per-request headers.
type MCPDeps struct {
	Store       *storage.Store
	Media       *mediaserver.Client
	Creds       mediaserver.Credentials
	Recommender Recommender
	Profiles    *profile.Manager
	Catalog     CatalogSearcher
}

// NewMCPServer creates an MCP server exposing the recommendation engine
// as tools and the taste profile as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"suggestd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("suggestd — personal movie and TV recommendations grounded in the user's watch history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_recommendations",
			mcp.WithDescription("Get a page of personalized movie/TV recommendations, excluding everything the user has already seen or dismissed."),
			mcp.WithString("type", mcp.Description("Restrict to \"movie\" or \"tv\"")),
			mcp.WithString("genre", mcp.Description("Optional genre preference")),
			mcp.WithString("mood", mcp.Description("Optional mood or theme preference")),
		),
		mcpGetRecommendations(deps),
	)

	s.AddTool(
		mcp.NewTool("mark_watched",
			mcp.WithDescription("Mark a catalog title as watched so it is never recommended again."),
			mcp.WithNumber("catalogId", mcp.Description("TMDB ID of the title"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Display title")),
			mcp.WithString("mediaType", mcp.Description("\"movie\" or \"tv\"")),
			mcp.WithString("year", mcp.Description("Release year")),
		),
		mcpMarkWatched(deps),
	)

	s.AddTool(
		mcp.NewTool("search_catalog",
			mcp.WithDescription("Search the media catalog by title and return matching entries with their IDs."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchCatalog(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile",
			"Taste Profile",
			mcp.WithResourceDescription("Generated summary of the user's viewing taste"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpGetRecommendations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rreq := recommend.Request{
			Creds:   deps.Creds,
			UserKey: deps.Creds.UserID,
		}
		rreq.Filters.MediaType = req.GetString("type", "")
		rreq.Filters.Genre = req.GetString("genre", "")
		rreq.Filters.Mood = req.GetString("mood", "")

		items, err := deps.Recommender.Recommend(ctx, deps.Media, rreq)
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation run failed: %v", err)), nil
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

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recommendations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpMarkWatched(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		catalogID := req.GetInt("catalogId", 0)
		if catalogID <= 0 {
			return mcpError("catalogId is required and must be positive"), nil
		}

		item := storage.ListItem{
			UserKey:     deps.Creds.UserID,
			List:        storage.ListWatched,
			CatalogID:   catalogID,
			Title:       req.GetString("title", ""),
			MediaType:   req.GetString("mediaType", ""),
			ReleaseYear: req.GetString("year", ""),
			AddedAt:     time.Now().UTC(),
		}
		if err := deps.Store.AddListItem(item); err != nil {
			return mcpError(fmt.Sprintf("failed to mark watched: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Marked %d as watched", catalogID)), nil
	}
}

func mcpSearchCatalog(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		results, err := deps.Catalog.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		type searchHit struct {
			ID        int    `json:"id"`
			Title     string `json:"title"`
			MediaType string `json:"mediaType"`
			Year      string `json:"year,omitempty"`
		}

		hits := make([]searchHit, 0, len(results))
		for _, r := range results {
			if r.MediaType == "person" {
				continue
			}
			hits = append(hits, searchHit{
				ID:        r.ID,
				Title:     r.DisplayTitle(),
				MediaType: r.MediaType,
				Year:      r.Year(),
			})
		}

		b, err := json.Marshal(hits)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		summary := deps.Profiles.Get(deps.Creds.UserID)

		b, err := json.Marshal(map[string]string{"summary": summary})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
