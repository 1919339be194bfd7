package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"suggestd/internal/api"
	"suggestd/internal/catalog"
	"suggestd/internal/config"
	"suggestd/internal/exclusions"
	"suggestd/internal/generator"
	"suggestd/internal/mediaserver"
	"suggestd/internal/profile"
	"suggestd/internal/recommend"
	"suggestd/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the suggestd server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running suggestd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show suggestd system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "suggestd.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "suggestd version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Refuse to start twice. Health probe first, PID file second.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("suggestd is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("suggestd is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Upstream clients.
	media := mediaserver.New(cfg.MediaServer.BaseURL)
	catalogClient := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.APIKey)
	genClient := generator.NewClient(cfg.Generator.BaseURL, cfg.Generator.APIKey, cfg.Generator.Model)

	// Recommendation engine.
	verifier := catalog.NewVerifier(catalogClient)
	gen := generator.New(genClient)
	builder := exclusions.NewBuilder(store)
	profileMgr := profile.NewManager(store)
	buffer := recommend.NewBufferWithTTL(time.Duration(cfg.Recommend.BufferTTLMinutes) * time.Minute)
	orchestrator := recommend.NewOrchestrator(builder, gen, verifier, profileMgr, buffer).
		WithLimits(cfg.Recommend.PageSize, cfg.Recommend.MaxAttempts)

	// Background profile refreshes.
	worker := profile.NewWorker(store, genClient, 2*time.Second)
	go worker.Run(ctx)

	handler := api.NewHandler(api.AppDeps{
		Store:       store,
		Media:       media,
		Catalog:     catalogClient,
		Recommender: orchestrator,
		Profiles:    profileMgr,
	})

	// MCP server over stdio, sharing the engine. Session comes from
	// config since stdio has no login flow.
	mcpCreds := mediaserver.Credentials{
		UserID:      cfg.MCP.UserID,
		AccessToken: cfg.MCP.AccessToken,
	}
	if mcpCreds.UserID != "" && mcpCreds.AccessToken != "" {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:       store,
			Media:       media,
			Creds:       mcpCreds,
			Recommender: orchestrator,
			Profiles:    profileMgr,
			Catalog:     catalogClient,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	} else {
		slog.Debug("MCP disabled: mcp.user_id / mcp.access_token not configured")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "suggestd listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("suggestd is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop suggestd (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to suggestd (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	mediaResp, err := client.Get(strings.TrimRight(cfg.MediaServer.BaseURL, "/") + "/System/Info/Public")
	if err != nil {
		printStatus("Media server", "not reachable at %s", cfg.MediaServer.BaseURL)
	} else {
		mediaResp.Body.Close()
		printStatus("Media server", "reachable at %s", cfg.MediaServer.BaseURL)
	}

	catalogResp, err := client.Get(strings.TrimRight(cfg.Catalog.BaseURL, "/") + "/api/v1/status")
	if err != nil {
		printStatus("Catalog", "not reachable at %s", cfg.Catalog.BaseURL)
	} else {
		catalogResp.Body.Close()
		printStatus("Catalog", "reachable at %s", cfg.Catalog.BaseURL)
	}

	printStatus("Generator model", "%s", cfg.Generator.Model)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
