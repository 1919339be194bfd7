package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"suggestd/internal/config"
	"suggestd/internal/mediaserver"
	"suggestd/internal/storage"
)

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in to the media server and save the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = string(raw)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		media := mediaserver.New(cfg.MediaServer.BaseURL)
		sess, err := media.Authenticate(ctx, args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := saveSession(cfg.Storage.DataDir, sess); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		printSuccess("Signed in as %s", sess.UserName)
		return nil
	},
}

func init() {
	loginCmd.Flags().String("password", "", "media-server password (prompted if omitted)")
}

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Get a page of personalized recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaType, _ := cmd.Flags().GetString("type")
		genre, _ := cmd.Flags().GetString("genre")
		mood, _ := cmd.Flags().GetString("mood")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if mediaType != "" {
			q.Set("type", mediaType)
		}
		if genre != "" {
			q.Set("genre", genre)
		}
		if mood != "" {
			q.Set("mood", mood)
		}
		path := "/recommendations"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var items []struct {
			TmdbID      int     `json:"tmdbId"`
			Title       string  `json:"title"`
			MediaType   string  `json:"mediaType"`
			ReleaseYear string  `json:"releaseYear"`
			Overview    string  `json:"overview"`
			VoteAverage float64 `json:"voteAverage"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No recommendations right now. Watch something first?")
			return nil
		}

		for i, item := range items {
			header := item.Title
			if item.ReleaseYear != "" {
				header = fmt.Sprintf("%s (%s)", item.Title, item.ReleaseYear)
			}
			fmt.Printf("\n%s %s  [%s, tmdb %d", colorize(colorBold, fmt.Sprintf("%2d.", i+1)), header, item.MediaType, item.TmdbID)
			if item.VoteAverage > 0 {
				fmt.Printf(", %.1f", item.VoteAverage)
			}
			fmt.Println("]")
			overview := item.Overview
			if len(overview) > 300 {
				overview = overview[:300] + "..."
			}
			if overview != "" {
				fmt.Printf("    %s\n", overview)
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().String("type", "", `restrict to "movie" or "tv"`)
	recommendCmd.Flags().String("genre", "", "genre preference")
	recommendCmd.Flags().String("mood", "", "mood or theme preference")
}

// --- lists ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Manage watched, watchlist, and blocked lists",
}

func init() {
	for _, list := range []string{storage.ListWatched, storage.ListWatchlist, storage.ListBlocked} {
		listCmd.AddCommand(newListShowCmd(list))
		listCmd.AddCommand(newListAddCmd(list))
		listCmd.AddCommand(newListRemoveCmd(list))
	}
}

func newListShowCmd(list string) *cobra.Command {
	return &cobra.Command{
		Use:   list,
		Short: fmt.Sprintf("Show the %s list", list),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}

			resp, err := client.get(cmd.Context(), "/"+list)
			if err != nil {
				return err
			}

			var items []struct {
				CatalogID   int    `json:"catalogId"`
				Title       string `json:"title"`
				MediaType   string `json:"mediaType"`
				ReleaseYear string `json:"releaseYear"`
			}
			if err := decodeJSON(resp, &items); err != nil {
				return err
			}

			if len(items) == 0 {
				fmt.Printf("The %s list is empty.\n", list)
				return nil
			}
			for _, item := range items {
				title := item.Title
				if title == "" {
					title = "(untitled)"
				}
				if item.ReleaseYear != "" {
					title = fmt.Sprintf("%s (%s)", title, item.ReleaseYear)
				}
				fmt.Printf("%s  %s  %s\n", colorize(colorCyan, fmt.Sprintf("%7d", item.CatalogID)), item.MediaType, title)
			}
			return nil
		},
	}
}

func newListAddCmd(list string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s-add <tmdb-id>", list),
		Short: fmt.Sprintf("Add a title to the %s list", list),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0])
			if err != nil {
				return err
			}
			title, _ := cmd.Flags().GetString("title")
			mediaType, _ := cmd.Flags().GetString("media-type")
			year, _ := cmd.Flags().GetString("year")

			client, err := newAPIClient()
			if err != nil {
				return err
			}

			resp, err := client.post(cmd.Context(), "/"+list, map[string]any{
				"catalogId":   id,
				"title":       title,
				"mediaType":   mediaType,
				"releaseYear": year,
			})
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}

			printSuccess("Added %d to %s", id, list)
			return nil
		},
	}
	cmd.Flags().String("title", "", "display title")
	cmd.Flags().String("media-type", "movie", `"movie" or "tv"`)
	cmd.Flags().String("year", "", "release year")
	return cmd
}

func newListRemoveCmd(list string) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("%s-remove <tmdb-id>", list),
		Short: fmt.Sprintf("Remove a title from the %s list", list),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parsePositiveInt(args[0])
			if err != nil {
				return err
			}

			client, err := newAPIClient()
			if err != nil {
				return err
			}

			resp, err := client.delete(cmd.Context(), fmt.Sprintf("/%s/%d", list, id))
			if err != nil {
				return err
			}
			var result map[string]string
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}

			printSuccess("Removed %d from %s", id, list)
			return nil
		},
	}
}

// --- request ---

var requestCmd = &cobra.Command{
	Use:   "request <tmdb-id>",
	Short: "Request a title from the catalog service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parsePositiveInt(args[0])
		if err != nil {
			return err
		}
		mediaType, _ := cmd.Flags().GetString("media-type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/requests", map[string]any{
			"mediaId":   id,
			"mediaType": mediaType,
		})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Requested %d (%s)", id, mediaType)
		return nil
	},
}

func init() {
	requestCmd.Flags().String("media-type", "movie", `"movie" or "tv"`)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the taste profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the generated taste profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/profile")
		if err != nil {
			return err
		}

		var p struct {
			Summary   string `json:"summary"`
			UpdatedAt string `json:"updatedAt"`
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		if p.Summary == "" {
			fmt.Println("No taste profile yet. It is built in the background after your first recommendation request.")
			return nil
		}
		fmt.Println(p.Summary)
		return nil
	},
}

var profileRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Queue a taste-profile rebuild",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profile/refresh", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile refresh queued")
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileRefreshCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func parsePositiveInt(s string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a positive integer", s)
	}
	return id, nil
}
