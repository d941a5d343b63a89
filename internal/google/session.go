package google

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"agendabot/internal/models"

	"golang.org/x/oauth2"
)

// Session provides calendar API clients backed by a cached credential.
type Session struct {
	config     *oauth2.Config
	store      TokenStore
	authorizer Authorizer
	logger     *slog.Logger
}

// NewSession creates a session. Nothing is read until Token or Client is called.
func NewSession(logger *slog.Logger, config *oauth2.Config, store TokenStore, authorizer Authorizer) *Session {
	return &Session{
		config:     config,
		store:      store,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Token returns a usable credential. A valid cached credential is returned
// as is; an expired one is refreshed; otherwise the authorizer is asked for a
// new one. Refreshed and new credentials overwrite the cache.
func (s *Session) Token(ctx context.Context) (*oauth2.Token, error) {
	cached, err := s.store.Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("No cached credential found.")
	case err != nil:
		s.logger.Warn("Cached credential is unreadable, re-authorizing.", "error", err)
	case cached.Valid():
		s.logger.Debug("Using cached credential.", "expiry", cached.Expiry)
		return cached, nil
	case cached.RefreshToken != "":
		refreshed, rerr := s.config.TokenSource(ctx, cached).Token()
		if rerr == nil {
			s.logger.Info("Refreshed cached credential.", "expiry", refreshed.Expiry)
			if err := s.store.Save(refreshed); err != nil {
				return nil, fmt.Errorf("failed to save refreshed token: %w", err)
			}
			return refreshed, nil
		}
		s.logger.Warn("Credential refresh failed, re-authorizing.", "error", rerr)
	default:
		s.logger.Info("Cached credential expired without a refresh token, re-authorizing.")
	}

	return s.Authorize(ctx)
}

// Authorize runs the authorizer unconditionally and caches the result.
func (s *Session) Authorize(ctx context.Context) (*oauth2.Token, error) {
	token, err := s.authorizer.Authorize(ctx, s.config)
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrAuth, err)
	}
	if err := s.store.Save(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	s.logger.Info("Authorization succeeded, credential cached.")
	return token, nil
}

// Client returns an HTTP client that authorizes requests with the session's
// credential. Refreshes performed by the client are written back to the cache.
func (s *Session) Client(ctx context.Context) (*http.Client, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	src := &persistingTokenSource{
		base:   s.config.TokenSource(ctx, token),
		store:  s.store,
		last:   token.AccessToken,
		logger: s.logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, src)), nil
}

// persistingTokenSource saves every newly issued token. Calls are serialized
// by the enclosing oauth2.ReuseTokenSource.
type persistingTokenSource struct {
	base   oauth2.TokenSource
	store  TokenStore
	last   string
	logger *slog.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAuth, err)
	}
	if token.AccessToken != p.last {
		if err := p.store.Save(token); err != nil {
			p.logger.Error("Failed to save refreshed token", "error", err)
		} else {
			p.last = token.AccessToken
		}
	}
	return token, nil
}
