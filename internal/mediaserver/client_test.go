package mediaserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/AuthenticateByName" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("X-Emby-Authorization") == "" {
			t.Error("missing X-Emby-Authorization header")
		}
		w.Write([]byte(`{"AccessToken":"tok123","User":{"Id":"u1","Name":"alice"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	sess, err := c.Authenticate(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if sess.AccessToken != "tok123" || sess.UserID != "u1" || sess.UserName != "alice" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestAuthenticateBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Authenticate(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrAuthExpired) {
		t.Errorf("err = %v, want ErrAuthExpired", err)
	}
}

func TestGetWatchedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Users/u1/Items" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("Filters"); got != "IsPlayed" {
			t.Errorf("Filters = %q, want IsPlayed", got)
		}
		if got := r.Header.Get("X-Emby-Token"); got != "tok123" {
			t.Errorf("X-Emby-Token = %q", got)
		}
		w.Write([]byte(`{"Items":[
			{"Name":"Fight Club","Type":"Movie","ProductionYear":1999,"CommunityRating":8.4,"ProviderIds":{"Tmdb":"550"}},
			{"Name":"Severance","Type":"Series","ProductionYear":2022,"CommunityRating":8.7,"ProviderIds":{"Tmdb":"95396"}},
			{"Name":"Home Video","Type":"Movie","ProductionYear":2003,"ProviderIds":{}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	items, err := c.GetWatchedItems(context.Background(), Credentials{UserID: "u1", AccessToken: "tok123"})
	if err != nil {
		t.Fatalf("GetWatchedItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].CatalogID != 550 || items[0].MediaType != "movie" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[1].CatalogID != 95396 || items[1].MediaType != "tv" {
		t.Errorf("item 1 = %+v", items[1])
	}
	if items[2].CatalogID != 0 {
		t.Errorf("item without provider ID should have CatalogID 0, got %d", items[2].CatalogID)
	}
}

func TestGetWatchedItemsAuthExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetWatchedItems(context.Background(), Credentials{UserID: "u1", AccessToken: "stale"})
	if !errors.Is(err, ErrAuthExpired) {
		t.Errorf("err = %v, want ErrAuthExpired", err)
	}
}

func TestGetOwnedKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("Filters"); got != "" {
			t.Errorf("owned snapshot should not filter on IsPlayed, got %q", got)
		}
		w.Write([]byte(`{"Items":[
			{"Name":"Dune","Type":"Movie","ProductionYear":2021,"ProviderIds":{"Tmdb":"438631"}},
			{"Name":"Obscure Short","Type":"Movie","ProductionYear":2015,"ProviderIds":{}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	keys, err := c.GetOwnedKeys(context.Background(), Credentials{UserID: "u1", AccessToken: "tok"})
	if err != nil {
		t.Fatalf("GetOwnedKeys: %v", err)
	}

	if _, ok := keys["catalog:438631"]; !ok {
		t.Errorf("missing catalog key, got %v", keys)
	}
	if _, ok := keys["titleyear:obscure short::2015"]; !ok {
		t.Errorf("missing titleyear key, got %v", keys)
	}
}

func TestWithBaseURL(t *testing.T) {
	c := New("http://original:8096")

	if got := c.WithBaseURL(""); got != c {
		t.Error("empty override should return the same client")
	}
	if got := c.WithBaseURL("http://override:8096/"); got.baseURL != "http://override:8096" {
		t.Errorf("override baseURL = %q", got.baseURL)
	}
}
