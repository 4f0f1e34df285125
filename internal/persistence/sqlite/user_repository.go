package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/eventrsvp/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

type userRow struct {
	ID            string         `db:"id"`
	Email         sql.NullString `db:"email"`
	WalletAddress sql.NullString `db:"wallet_address"`
	Nickname      string         `db:"nickname"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

func (r userRow) toUser() (persistence.User, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:            r.ID,
		Email:         stringPtr(r.Email),
		WalletAddress: stringPtr(r.WalletAddress),
		Nickname:      r.Nickname,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

const userColumns = `id, email, wallet_address, nickname, created_at, updated_at`

// CreateUser inserts a new user. Email and wallet are stored lower-cased.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullableString(normalizeOptional(user.Email)),
		nullableString(normalizeOptional(user.WalletAddress)),
		user.Nickname,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return mapError(err)
}

// UpdateUser updates an existing user
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE users
		SET email = ?, wallet_address = ?, nickname = ?, updated_at = ?
		WHERE id = ?`,
		nullableString(normalizeOptional(user.Email)),
		nullableString(normalizeOptional(user.WalletAddress)),
		user.Nickname,
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetUser retrieves a user by ID
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email address, case-insensitively
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeKey(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
}

// GetUserByWallet retrieves a user by wallet address, case-insensitively
func (r *UserRepository) GetUserByWallet(ctx context.Context, wallet string) (persistence.User, error) {
	normalized := normalizeKey(wallet)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = ?`, normalized)
}

// ListUsers returns all users ordered by creation timestamp then ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := r.pool.DB().SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, mapError(err)
	}

	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteUser removes a user. Their events and RSVPs go with them.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (persistence.User, error) {
	var row userRow
	if err := r.pool.DB().GetContext(ctx, &row, query, arg); err != nil {
		return persistence.User{}, mapError(err)
	}
	user, err := row.toUser()
	if err != nil {
		return persistence.User{}, fmt.Errorf("sqlite: decode user %s: %w", row.ID, err)
	}
	return user, nil
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := normalizeKey(*value)
	if normalized == "" {
		return nil
	}
	return &normalized
}
