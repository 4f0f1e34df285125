package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/eventrsvp/internal/persistence"
	"github.com/example/eventrsvp/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users       persistence.UserRepository
	Events      persistence.EventRepository
	Rsvps       persistence.RsvpRepository
	Collections persistence.CollectionRepository
	Credentials persistence.CredentialRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Credentials are stored unsealed. Callers may
// optionally invoke Close, but the helper will also register a cleanup
// callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "eventrsvp.db")

	storage, err := sqlite.OpenPath(path, nil, nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:       storage.Users,
		Events:      storage.Events,
		Rsvps:       storage.Rsvps,
		Collections: storage.Collections,
		Credentials: storage.Credentials,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
