package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/api/option"

	"github.com/example/eventrsvp/internal/application"
	"github.com/example/eventrsvp/internal/calendar"
	"github.com/example/eventrsvp/internal/config"
	httptransport "github.com/example/eventrsvp/internal/http"
	"github.com/example/eventrsvp/internal/persistence"
	"github.com/example/eventrsvp/internal/persistence/sqlite"
)

// buildHandler wires repositories, services and handlers into the API router.
func buildHandler(ctx context.Context, cfg config.Config, storage *sqlite.Storage, logger *slog.Logger, calendarOpts ...option.ClientOption) http.Handler {
	now := time.Now

	users := newUserRepositoryAdapter(storage.Users)
	events := newEventRepositoryAdapter(storage.Events)
	rsvps := newRsvpRepositoryAdapter(storage.Rsvps)
	collections := newCollectionRepositoryAdapter(storage.Collections)
	adapter := buildCalendarAdapter(ctx, cfg, storage.Credentials, logger, calendarOpts...)

	notifier := application.NewInviteNotifier(events, users, rsvps, adapter, application.InviteNotifierConfig{
		Host:        cfg.DeploymentHost,
		MissingUser: application.MissingUserStop,
	}, now, logger)
	eventService := application.NewEventServiceWithLogger(events, rsvps, adapter, application.EventServiceConfig{
		Host:       cfg.DeploymentHost,
		CalendarID: cfg.Google.CalendarID,
	}, newID, newEventHash, now, logger)
	rsvpService := application.NewRsvpServiceWithLogger(events, users, rsvps, notifier, newID, now, logger)
	userService := application.NewUserServiceWithLogger(users, newID, now, logger)
	collectionService := application.NewCollectionServiceWithLogger(collections, newID, now, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Invites:     httptransport.NewInviteHandler(notifier, logger),
		Events:      httptransport.NewEventHandler(eventService, logger),
		Rsvps:       httptransport.NewRsvpHandler(rsvpService, logger),
		Users:       httptransport.NewUserHandler(userService, logger),
		Collections: httptransport.NewCollectionHandler(collectionService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
}

// buildCalendarAdapter returns nil when Google Calendar is not configured or
// no credential has been stored yet; calendar features then report a
// configuration error instead of failing startup.
func buildCalendarAdapter(ctx context.Context, cfg config.Config, credentials persistence.CredentialRepository, logger *slog.Logger, opts ...option.ClientOption) application.CalendarAdapter {
	if !cfg.Google.Enabled() {
		logger.Warn("google calendar integration disabled", "reason", "oauth client not configured")
		return nil
	}

	store := newCredentialTokenStore(credentials, cfg.Google.CredentialOwner, time.Now)
	oauthConfig := calendar.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	client, err := calendar.NewGoogleClientFromStore(ctx, oauthConfig, store, cfg.Google.QPS, logger, opts...)
	if err != nil {
		reason := "client setup failed"
		if errors.Is(err, persistence.ErrNotFound) {
			reason = "no stored credential; run google-auth"
		}
		logger.Warn("google calendar integration disabled", "reason", reason, "owner", cfg.Google.CredentialOwner, "error", err)
		return nil
	}
	return client
}
