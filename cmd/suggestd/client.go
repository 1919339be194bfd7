package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"suggestd/internal/config"
	"suggestd/internal/mediaserver"
)

type apiClient struct {
	baseURL    string
	session    mediaserver.Session
	httpClient *http.Client
}

// newAPIClient is a var so tests can swap it out.
var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	sess, err := loadSession(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("no saved session — run `suggestd login` first (%w)", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		session:    sess,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

func sessionFilePath(dataDir string) string {
	return filepath.Join(dataDir, "session.json")
}

func saveSession(dataDir string, sess mediaserver.Session) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return os.WriteFile(sessionFilePath(dataDir), data, 0o600)
}

func loadSession(dataDir string) (mediaserver.Session, error) {
	data, err := os.ReadFile(sessionFilePath(dataDir))
	if err != nil {
		return mediaserver.Session{}, err
	}
	var sess mediaserver.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return mediaserver.Session{}, fmt.Errorf("parsing session file: %w", err)
	}
	return sess, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Access-Token", c.session.AccessToken)
	req.Header.Set("X-User-Id", c.session.UserID)
	req.Header.Set("X-User-Name", c.session.UserName)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable — is suggestd running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "GET", path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, "POST", path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "DELETE", path, nil)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
