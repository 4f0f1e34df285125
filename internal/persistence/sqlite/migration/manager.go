package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type migrationManager struct {
	scanner      FileScanner
	executor     Executor
	migrationDir string
	logger       *slog.Logger
}

// NewMigrationManager creates a new MigrationManager implementation
func NewMigrationManager(scanner FileScanner, executor Executor, migrationDir string, logger *slog.Logger) MigrationManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &migrationManager{
		scanner:      scanner,
		executor:     executor,
		migrationDir: migrationDir,
		logger:       logger.With("component", "migration"),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *migrationManager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		m.logger.ErrorContext(ctx, "failed to initialize schema_migrations table", "error", err)
		return fmt.Errorf("failed to initialize version table: %w", err)
	}

	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to resolve pending migrations", "dir", m.migrationDir, "error", err)
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "pending", len(pending))

	for i, migration := range pending {
		migrationStart := time.Now()
		logger := m.logger.With("version", migration.Version, "file", migration.FilePath)
		logger.InfoContext(ctx, "executing migration",
			"description", migration.Description,
			"position", i+1,
			"total", len(pending),
		)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		executionTime := time.Since(migrationStart)
		if err := m.executor.RecordMigration(ctx, migration, executionTime); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath,
				"record migration", fmt.Errorf("failed to record migration: %w", err))
		}

		logger.InfoContext(ctx, "migration applied", "duration_ms", executionTime.Milliseconds())
	}

	m.logger.InfoContext(ctx, "all migrations applied",
		"count", len(pending),
		"duration_ms", time.Since(startTime).Milliseconds(),
	)
	return nil
}

// GetPendingMigrations returns list of migrations that need to be applied
func (m *migrationManager) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.migrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedByVersion := make(map[string]AppliedMigration, len(applied))
	for _, item := range applied {
		appliedByVersion[versionKey(item.Version)] = item
	}

	var pending []Migration
	for _, migration := range available {
		record, ok := appliedByVersion[versionKey(migration.Version)]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		// Rows recorded without a checksum predate checksum tracking.
		if record.Checksum != "" && migration.Checksum != "" && record.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: file changed after it was applied", ErrChecksumMismatch))
		}
	}

	return pending, nil
}

// GetMigrationStatus returns status information about migrations
func (m *migrationManager) GetMigrationStatus(ctx context.Context) (*MigrationStatus, error) {
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return nil, err
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	status := &MigrationStatus{
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}
	for _, item := range applied {
		if status.CurrentVersion == "" || versionNumber(item.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = item.Version
		}
	}

	return status, nil
}

// validateSequence rejects gaps between available versions and applied versions
// that no longer have a file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, migration := range available {
		version := versionNumber(migration.Version)
		if i > 0 && version != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence",
				ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		known[version] = true
	}

	for _, item := range applied {
		version := versionNumber(item.Version)
		if version == 0 {
			return NewDatabaseError(item.Version, "", "validate sequence",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrVersionTableCorrupt, item.Version))
		}
		if !known[version] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations",
				ErrVersionConflict, version)
		}
	}
	return nil
}
