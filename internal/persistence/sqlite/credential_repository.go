package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/eventrsvp/internal/persistence"
)

// Sealer protects token material at rest. A nil Sealer stores values as given.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// CredentialRepository implements persistence.CredentialRepository using SQLite
type CredentialRepository struct {
	pool   *ConnectionPool
	sealer Sealer
}

// NewCredentialRepository creates a credential repository sealing tokens with sealer
func NewCredentialRepository(pool *ConnectionPool, sealer Sealer) *CredentialRepository {
	return &CredentialRepository{pool: pool, sealer: sealer}
}

type googleCredentialRow struct {
	OwnerID       string         `db:"owner_id"`
	AccessToken   string         `db:"access_token"`
	RefreshToken  string         `db:"refresh_token"`
	TokenType     string         `db:"token_type"`
	Expiry        sql.NullString `db:"expiry"`
	Scope         string         `db:"scope"`
	CalendarEmail string         `db:"calendar_email"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

type slackCredentialRow struct {
	OwnerID   string `db:"owner_id"`
	TeamID    string `db:"team_id"`
	BotToken  string `db:"bot_token"`
	ChannelID string `db:"channel_id"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// UpsertGoogleCredential stores or replaces the Google credential of an owner
func (r *CredentialRepository) UpsertGoogleCredential(ctx context.Context, credential persistence.GoogleCredential) error {
	if credential.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	accessToken, err := r.seal(credential.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := r.seal(credential.RefreshToken)
	if err != nil {
		return err
	}

	var expiry sql.NullString
	if credential.Expiry != nil {
		expiry = sql.NullString{String: formatTime(*credential.Expiry), Valid: true}
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO google_credentials (owner_id, access_token, refresh_token, token_type, expiry,
		                                scope, calendar_email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN google_credentials.refresh_token ELSE excluded.refresh_token END,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			scope = excluded.scope,
			calendar_email = CASE WHEN excluded.calendar_email = '' THEN google_credentials.calendar_email ELSE excluded.calendar_email END,
			updated_at = excluded.updated_at`,
		credential.OwnerID,
		accessToken,
		refreshToken,
		credential.TokenType,
		expiry,
		credential.Scope,
		credential.CalendarEmail,
		formatTime(credential.CreatedAt),
		formatTime(credential.UpdatedAt),
	)
	return mapError(err)
}

// GetGoogleCredential returns the unsealed Google credential of an owner
func (r *CredentialRepository) GetGoogleCredential(ctx context.Context, ownerID string) (persistence.GoogleCredential, error) {
	var row googleCredentialRow
	if err := r.pool.DB().GetContext(ctx, &row, `
		SELECT owner_id, access_token, refresh_token, token_type, expiry, scope, calendar_email, created_at, updated_at
		FROM google_credentials WHERE owner_id = ?`, ownerID); err != nil {
		return persistence.GoogleCredential{}, mapError(err)
	}

	credential := persistence.GoogleCredential{
		OwnerID:       row.OwnerID,
		TokenType:     row.TokenType,
		Scope:         row.Scope,
		CalendarEmail: row.CalendarEmail,
	}
	var err error
	if credential.AccessToken, err = r.open(row.AccessToken); err != nil {
		return persistence.GoogleCredential{}, err
	}
	if credential.RefreshToken, err = r.open(row.RefreshToken); err != nil {
		return persistence.GoogleCredential{}, err
	}
	if row.Expiry.Valid {
		expiry, err := parseTime(row.Expiry.String)
		if err != nil {
			return persistence.GoogleCredential{}, err
		}
		credential.Expiry = &expiry
	}
	if credential.CreatedAt, err = parseTime(row.CreatedAt); err != nil {
		return persistence.GoogleCredential{}, err
	}
	if credential.UpdatedAt, err = parseTime(row.UpdatedAt); err != nil {
		return persistence.GoogleCredential{}, err
	}
	return credential, nil
}

// UpsertSlackCredential stores or replaces the Slack credential of an owner
func (r *CredentialRepository) UpsertSlackCredential(ctx context.Context, credential persistence.SlackCredential) error {
	if credential.OwnerID == "" || credential.TeamID == "" {
		return persistence.ErrConstraintViolation
	}

	botToken, err := r.seal(credential.BotToken)
	if err != nil {
		return err
	}

	_, err = r.pool.DB().ExecContext(ctx, `
		INSERT INTO slack_credentials (owner_id, team_id, bot_token, channel_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			team_id = excluded.team_id,
			bot_token = excluded.bot_token,
			channel_id = excluded.channel_id,
			updated_at = excluded.updated_at`,
		credential.OwnerID,
		credential.TeamID,
		botToken,
		credential.ChannelID,
		formatTime(credential.CreatedAt),
		formatTime(credential.UpdatedAt),
	)
	return mapError(err)
}

// GetSlackCredential returns the unsealed Slack credential of an owner
func (r *CredentialRepository) GetSlackCredential(ctx context.Context, ownerID string) (persistence.SlackCredential, error) {
	var row slackCredentialRow
	if err := r.pool.DB().GetContext(ctx, &row, `
		SELECT owner_id, team_id, bot_token, channel_id, created_at, updated_at
		FROM slack_credentials WHERE owner_id = ?`, ownerID); err != nil {
		return persistence.SlackCredential{}, mapError(err)
	}

	botToken, err := r.open(row.BotToken)
	if err != nil {
		return persistence.SlackCredential{}, err
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.SlackCredential{}, err
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.SlackCredential{}, err
	}

	return persistence.SlackCredential{
		OwnerID:   row.OwnerID,
		TeamID:    row.TeamID,
		BotToken:  botToken,
		ChannelID: row.ChannelID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (r *CredentialRepository) seal(value string) (string, error) {
	if r.sealer == nil {
		return value, nil
	}
	sealed, err := r.sealer.Seal(value)
	if err != nil {
		return "", fmt.Errorf("sqlite: seal credential: %w", err)
	}
	return sealed, nil
}

func (r *CredentialRepository) open(value string) (string, error) {
	if r.sealer == nil {
		return value, nil
	}
	opened, err := r.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("sqlite: open credential: %w", err)
	}
	return opened, nil
}
