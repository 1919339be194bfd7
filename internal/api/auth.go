package api

import (
	"context"
	"net/http"

	"suggestd/internal/mediaserver"
)

// Session headers expected on authenticated routes. They carry the
// media-server token obtained from POST /auth/login.
const (
	headerAccessToken = "X-Access-Token"
	headerUserID      = "X-User-Id"
	headerUserName    = "X-User-Name"
	headerMediaServer = "X-Media-Server"
)

// RequestSession is the per-request identity extracted from headers.
type RequestSession struct {
	Creds     mediaserver.Credentials
	UserName  string
	ServerURL string // optional media-server base URL override
}

// UserKey identifies the user in local storage.
func (s RequestSession) UserKey() string {
	return s.Creds.UserID
}

type sessionContextKey struct{}

// SessionAuth rejects requests missing the media-server session headers
// and stashes the parsed session in the request context.
func SessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerAccessToken)
		userID := r.Header.Get(headerUserID)
		if token == "" || userID == "" {
			httpError(w, http.StatusUnauthorized, "authentication_error", "missing %s or %s header", headerAccessToken, headerUserID)
			return
		}

		sess := RequestSession{
			Creds:     mediaserver.Credentials{UserID: userID, AccessToken: token},
			UserName:  r.Header.Get(headerUserName),
			ServerURL: r.Header.Get(headerMediaServer),
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) RequestSession {
	sess, _ := r.Context().Value(sessionContextKey{}).(RequestSession)
	return sess
}
