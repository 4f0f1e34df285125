package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// OAuthConfig returns the OAuth client used for the consent flow and token refresh.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gcal.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
}

// TokenStore loads and saves the OAuth token of the calendar account.
type TokenStore interface {
	LoadToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, token *oauth2.Token) error
}

// NewGoogleClientFromStore builds a GoogleClient whose token comes from store.
// Refreshed tokens are written back to store. ctx bounds token refreshes, so
// pass a long-lived context rather than a request context.
func NewGoogleClientFromStore(ctx context.Context, config *oauth2.Config, store TokenStore, qps float64, logger *slog.Logger, opts ...option.ClientOption) (*GoogleClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token, err := store.LoadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("google calendar: load token: %w", err)
	}

	source := oauth2.ReuseTokenSource(token, &persistingTokenSource{
		ctx:    ctx,
		base:   config.TokenSource(ctx, token),
		store:  store,
		last:   token.AccessToken,
		logger: logger,
	})

	opts = append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, source))}, opts...)
	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google calendar: create service: %w", err)
	}

	return NewGoogleClient(service, NewLimiter(qps), logger), nil
}

// persistingTokenSource saves every newly minted token.
type persistingTokenSource struct {
	ctx    context.Context
	base   oauth2.TokenSource
	store  TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.last {
		return token, nil
	}
	s.last = token.AccessToken

	// A failed save only costs a refresh on the next start.
	if err := s.store.SaveToken(s.ctx, token); err != nil {
		s.logger.WarnContext(s.ctx, "failed to persist refreshed token", "error", err)
	} else {
		s.logger.InfoContext(s.ctx, "persisted refreshed token", "expiry", token.Expiry)
	}
	return token, nil
}
