package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"agendabot/internal/models"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Authorizer obtains a fresh credential, typically by asking the user.
type Authorizer interface {
	Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

// LocalServerAuthorizer runs the installed-app consent flow: it listens on a
// local port for the OAuth redirect and exchanges the returned code.
type LocalServerAuthorizer struct {
	Port   int
	Logger *slog.Logger
	// OpenURL presents the consent URL to the user. Defaults to printing it.
	OpenURL func(url string) error
	// Out receives the consent instructions when OpenURL is nil.
	Out io.Writer
}

type callbackResult struct {
	code string
	err  error
}

// Authorize blocks until the user completes consent, ctx is canceled, or the
// provider reports an error.
func (a *LocalServerAuthorizer) Authorize(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.Port))
	if err != nil {
		return nil, fmt.Errorf("unable to open callback listener: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "State mismatch.", http.StatusBadRequest)
				return
			}
			var res callbackResult
			switch {
			case q.Get("error") != "":
				res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
				http.Error(w, "Authorization failed. You can close this window.", http.StatusForbidden)
			case q.Get("code") == "":
				res.err = errors.New("callback carried no authorization code")
				http.Error(w, "Missing authorization code.", http.StatusBadRequest)
			default:
				res.code = q.Get("code")
				_, _ = io.WriteString(w, "Authorization complete. You can close this window.\n")
			}
			select {
			case results <- res:
			default:
			}
		}),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger().Error("Callback listener failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	a.logger().Info("Waiting for calendar authorization.", "callback", cfg.RedirectURL)
	if err := a.present(authURL); err != nil {
		return nil, fmt.Errorf("unable to present consent URL: %w", err)
	}

	var res callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	token, err := cfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %w", err)
	}
	return token, nil
}

func (a *LocalServerAuthorizer) present(authURL string) error {
	if a.OpenURL != nil {
		return a.OpenURL(authURL)
	}
	out := a.Out
	if out == nil {
		out = io.Discard
	}
	_, err := fmt.Fprintf(out, "Go to the following link in your browser to authorize calendar access:\n%s\n", authURL)
	return err
}

func (a *LocalServerAuthorizer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// HeadlessAuthorizer refuses to authorize. It is used where no browser is
// available, so a missing credential fails fast instead of hanging.
type HeadlessAuthorizer struct{}

// Authorize always fails with models.ErrAuth.
func (HeadlessAuthorizer) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	return nil, fmt.Errorf("%w: interactive authorization is disabled; run the auth command on a machine with a browser", models.ErrAuth)
}
