package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/example/eventrsvp/internal/calendar"
	"github.com/example/eventrsvp/internal/config"
	"github.com/example/eventrsvp/internal/logging"
	"github.com/example/eventrsvp/internal/persistence"
	"github.com/example/eventrsvp/internal/persistence/sqlite"
	"github.com/example/eventrsvp/internal/secrets"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(c.App.ErrWriter, logging.FormatJSON, cfg.LogLevel)

			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := storage.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			handler := buildHandler(c.Context, cfg, storage, logger)
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return runServer(c.Context, server, logger)
		},
	}
}

// runServer serves until ctx is cancelled, then shuts the server down.
func runServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("eventrsvp API listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("eventrsvp API stopped")
	return nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and print their status.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(c.App.ErrWriter, logging.FormatText, cfg.LogLevel)

			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			status, err := storage.MigrationStatus(c.Context)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}
			for _, applied := range status.AppliedMigrations {
				fmt.Fprintf(c.App.Writer, "applied %s at %s\n", applied.Version, applied.AppliedAt.UTC().Format(time.RFC3339))
			}
			fmt.Fprintf(c.App.Writer, "current version: %s, pending: %d\n", status.CurrentVersion, status.PendingCount)
			return nil
		},
	}
}

func googleAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "google-auth",
		Usage: "Authorize Google Calendar access and store the credential.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "Credential owner; defaults to EVENTRSVP_GOOGLE_CREDENTIAL_OWNER."},
			&cli.StringFlag{Name: "calendar-email", Usage: "Address of the authorized calendar account."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if !cfg.Google.Enabled() {
				return fmt.Errorf("google oauth client is not configured: set %s and %s", config.EnvGoogleClientID, config.EnvGoogleClientSecret)
			}
			logger := logging.New(c.App.ErrWriter, logging.FormatText, cfg.LogLevel)

			owner := strings.TrimSpace(c.String("owner"))
			if owner == "" {
				owner = cfg.Google.CredentialOwner
			}

			oauthConfig := calendar.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
			authURL := oauthConfig.AuthCodeURL("eventrsvp", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
			fmt.Fprintf(c.App.Writer, "Open the following link in your browser, then paste the authorization code:\n%s\n", authURL)
			fmt.Fprint(c.App.Writer, "Authorization code: ")

			code, err := bufio.NewReader(c.App.Reader).ReadString('\n')
			if err != nil && strings.TrimSpace(code) == "" {
				return fmt.Errorf("read authorization code: %w", err)
			}
			token, err := oauthConfig.Exchange(c.Context, strings.TrimSpace(code))
			if err != nil {
				return fmt.Errorf("exchange authorization code: %w", err)
			}

			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if err := storeGoogleToken(c.Context, storage.Credentials, owner, strings.TrimSpace(c.String("calendar-email")), token, time.Now); err != nil {
				return err
			}
			logger.Info("stored google credential", "owner", owner)
			return nil
		},
	}
}

func storeGoogleToken(ctx context.Context, repo persistence.CredentialRepository, owner, calendarEmail string, token *oauth2.Token, now func() time.Time) error {
	store := newCredentialTokenStore(repo, owner, now)
	if err := store.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("store google credential: %w", err)
	}
	if calendarEmail == "" {
		return nil
	}
	credential, err := repo.GetGoogleCredential(ctx, owner)
	if err != nil {
		return fmt.Errorf("reload google credential: %w", err)
	}
	credential.CalendarEmail = calendarEmail
	if err := repo.UpsertGoogleCredential(ctx, credential); err != nil {
		return fmt.Errorf("store calendar email: %w", err)
	}
	return nil
}

func slackCredentialCommand() *cli.Command {
	return &cli.Command{
		Name:  "slack-credential",
		Usage: "Store a Slack bot credential.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Required: true},
			&cli.StringFlag{Name: "team-id", Required: true},
			&cli.StringFlag{Name: "bot-token", Required: true, EnvVars: []string{"EVENTRSVP_SLACK_BOT_TOKEN"}},
			&cli.StringFlag{Name: "channel-id"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(c.App.ErrWriter, logging.FormatText, cfg.LogLevel)

			storage, err := openStorage(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			now := time.Now().UTC()
			credential := persistence.SlackCredential{
				OwnerID:   strings.TrimSpace(c.String("owner")),
				TeamID:    strings.TrimSpace(c.String("team-id")),
				BotToken:  strings.TrimSpace(c.String("bot-token")),
				ChannelID: strings.TrimSpace(c.String("channel-id")),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := storage.Credentials.UpsertSlackCredential(c.Context, credential); err != nil {
				return fmt.Errorf("store slack credential: %w", err)
			}
			logger.Info("stored slack credential", "owner", credential.OwnerID, "team_id", credential.TeamID)
			return nil
		},
	}
}

// openStorage opens and migrates the configured database.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlite.Storage, error) {
	storage, err := sqlite.OpenPath(cfg.SQLiteDSN, secrets.NewBox(cfg.CredentialsSecret), logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}
