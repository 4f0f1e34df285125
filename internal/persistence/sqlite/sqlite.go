package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/eventrsvp/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool   *ConnectionPool
	logger *slog.Logger

	Users       *UserRepository
	Events      *EventRepository
	Rsvps       *RsvpRepository
	Collections *CollectionRepository
	Credentials *CredentialRepository
}

// Open connects to the database described by config. Credential tokens are
// sealed with sealer when it is non-nil.
func Open(config migration.SQLiteConfig, sealer Sealer, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", config.DSN, err)
	}

	return &Storage{
		pool:        pool,
		logger:      logger,
		Users:       NewUserRepository(pool),
		Events:      NewEventRepository(pool),
		Rsvps:       NewRsvpRepository(pool),
		Collections: NewCollectionRepository(pool),
		Credentials: NewCredentialRepository(pool, sealer),
	}, nil
}

// OpenPath opens a database file with the default server configuration.
func OpenPath(dsn string, sealer Sealer, logger *slog.Logger) (*Storage, error) {
	return Open(migration.DefaultSQLiteConfig(dsn), sealer, logger)
}

// Pool exposes the underlying connection pool.
func (s *Storage) Pool() *ConnectionPool {
	return s.pool
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	return s.migrationManager().RunMigrations(ctx)
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (*migration.MigrationStatus, error) {
	return s.migrationManager().GetMigrationStatus(ctx)
}

func (s *Storage) migrationManager() migration.MigrationManager {
	return migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles),
		migration.NewSQLiteExecutor(s.pool.DB().DB),
		migrationDir,
		s.logger,
	)
}
