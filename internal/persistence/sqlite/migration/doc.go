// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the {version}_{description}.sql naming convention
// (for example "001_initial_schema.sql") and are read from any fs.FS, which
// lets the storage layer ship them embedded in the binary. Applied versions
// and their checksums are tracked in the schema_migrations table; a file whose
// content changed after it was applied is reported instead of silently re-run.
//
// Example usage:
//
//	scanner := migration.NewFileScanner(migrationsFS)
//	executor := migration.NewSQLiteExecutor(db)
//	manager := migration.NewMigrationManager(scanner, executor, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
