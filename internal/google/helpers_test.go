package google

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryTokenStore struct {
	token *oauth2.Token
	saves int
}

func (m *memoryTokenStore) Load() (*oauth2.Token, error) {
	if m.token == nil {
		return nil, fmt.Errorf("open token.json: %w", fs.ErrNotExist)
	}
	tok := *m.token
	return &tok, nil
}

func (m *memoryTokenStore) Save(token *oauth2.Token) error {
	tok := *token
	m.token = &tok
	m.saves++
	return nil
}

type fakeAuthorizer struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

// newTokenServer serves an OAuth2 token endpoint. A nil handler answers
// every request with a fresh bearer token.
func newTokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	if handler == nil {
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh"}`)
		}
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   tokenURL + "/auth",
			TokenURL:  tokenURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
