package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"suggestd/internal/mediaserver"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Token  string
	UserID string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Token:  r.Header.Get("X-Access-Token"),
			UserID: r.Header.Get("X-User-Id"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		session:    mediaserver.Session{AccessToken: "tok-1", UserID: "user-1", UserName: "alice"},
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func withTestClient(t *testing.T, ts *testServer) {
	t.Helper()
	old := newAPIClient
	newAPIClient = func() (*apiClient, error) {
		return ts.client(), nil
	}
	t.Cleanup(func() { newAPIClient = old })
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	defer rootCmd.SetArgs(nil)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRecommendCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /recommendations": `[{"tmdbId":949,"title":"Heat","mediaType":"movie","releaseYear":"1995","voteAverage":8.3}]`,
	})
	withTestClient(t, ts)

	if err := runCommand(t, "recommend", "--type", "movie", "--genre", "crime"); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("requests = %+v", ts.requests)
	}
	req := ts.requests[0]
	if !strings.Contains(req.Path, "type=movie") || !strings.Contains(req.Path, "genre=crime") {
		t.Errorf("path = %s", req.Path)
	}
	if req.Token != "tok-1" || req.UserID != "user-1" {
		t.Errorf("session headers = %q / %q", req.Token, req.UserID)
	}
}

func TestListAddCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /watched": `{"status":"added"}`,
	})
	withTestClient(t, ts)

	if err := runCommand(t, "list", "watched-add", "550", "--title", "Fight Club", "--year", "1999"); err != nil {
		t.Fatalf("watched-add: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("requests = %+v", ts.requests)
	}
	body := ts.requests[0].Body
	if !strings.Contains(body, `"catalogId":550`) || !strings.Contains(body, `"Fight Club"`) {
		t.Errorf("body = %s", body)
	}
}

func TestListAddRejectsBadID(t *testing.T) {
	ts := newTestServer(t, nil)
	withTestClient(t, ts)

	if err := runCommand(t, "list", "watched-add", "zero"); err == nil {
		t.Fatal("expected error for non-numeric ID")
	}
	if len(ts.requests) != 0 {
		t.Errorf("request sent despite invalid ID: %+v", ts.requests)
	}
}

func TestListRemoveCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /watchlist/680": `{"status":"removed"}`,
	})
	withTestClient(t, ts)

	if err := runCommand(t, "list", "watchlist-remove", "680"); err != nil {
		t.Fatalf("watchlist-remove: %v", err)
	}
	if len(ts.requests) != 1 || ts.requests[0].Method != http.MethodDelete {
		t.Fatalf("requests = %+v", ts.requests)
	}
}

func TestRequestCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /requests": `{"status":"requested"}`,
	})
	withTestClient(t, ts)

	if err := runCommand(t, "request", "693134", "--media-type", "movie"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !strings.Contains(ts.requests[0].Body, `"mediaId":693134`) {
		t.Errorf("body = %s", ts.requests[0].Body)
	}
}

func TestProfileRefreshCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /profile/refresh": `{"status":"queued"}`,
	})
	withTestClient(t, ts)

	if err := runCommand(t, "profile", "refresh"); err != nil {
		t.Fatalf("profile refresh: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sess := mediaserver.Session{AccessToken: "tok-9", UserID: "u-9", UserName: "alice"}

	if err := saveSession(dir, sess); err != nil {
		t.Fatalf("saveSession: %v", err)
	}
	got, err := loadSession(dir)
	if err != nil {
		t.Fatalf("loadSession: %v", err)
	}
	if got != sess {
		t.Errorf("session = %+v, want %+v", got, sess)
	}
}

func TestLoadSessionMissing(t *testing.T) {
	if _, err := loadSession(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing session file")
	}
}

func TestColorize(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "hello"); got != "hello" {
		t.Errorf("colorize with noColor=true = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "hello"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false = %q", got)
	}
}
