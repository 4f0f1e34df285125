package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/eventrsvp/internal/persistence"
)

// CollectionRepository implements persistence.CollectionRepository using SQLite
type CollectionRepository struct {
	pool *ConnectionPool
}

// NewCollectionRepository creates a new SQLite collection repository
func NewCollectionRepository(pool *ConnectionPool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

type collectionRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Slug      string `db:"slug"`
	OwnerID   string `db:"owner_id"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type membershipRow struct {
	CollectionID string `db:"collection_id"`
	EventID      string `db:"event_id"`
}

const collectionColumns = `id, name, slug, owner_id, created_at, updated_at`

// CreateCollection inserts a collection together with its initial events
func (r *CollectionRepository) CreateCollection(ctx context.Context, collection persistence.Collection) error {
	if collection.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collections (`+collectionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`,
			collection.ID,
			collection.Name,
			collection.Slug,
			collection.OwnerID,
			formatTime(collection.CreatedAt),
			formatTime(collection.UpdatedAt),
		)
		if err != nil {
			return mapError(err)
		}
		return insertMemberships(ctx, tx, collection.ID, collection.EventIDs, collection.CreatedAt)
	})
}

// GetCollection retrieves a collection with its event ids
func (r *CollectionRepository) GetCollection(ctx context.Context, id string) (persistence.Collection, error) {
	var row collectionRow
	if err := r.pool.DB().GetContext(ctx, &row,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id); err != nil {
		return persistence.Collection{}, mapError(err)
	}

	collections, err := r.hydrate(ctx, []collectionRow{row})
	if err != nil {
		return persistence.Collection{}, err
	}
	return collections[0], nil
}

// ListCollectionsByOwner returns the collections of an owner ordered by name
func (r *CollectionRepository) ListCollectionsByOwner(ctx context.Context, ownerID string) ([]persistence.Collection, error) {
	var rows []collectionRow
	if err := r.pool.DB().SelectContext(ctx, &rows,
		`SELECT `+collectionColumns+` FROM collections WHERE owner_id = ? ORDER BY name ASC, id ASC`, ownerID); err != nil {
		return nil, mapError(err)
	}
	return r.hydrate(ctx, rows)
}

// AddEventsToCollection adds events to a collection. Events already present are ignored.
func (r *CollectionRepository) AddEventsToCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error {
	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := touchCollection(ctx, tx, collectionID, at); err != nil {
			return err
		}
		return insertMemberships(ctx, tx, collectionID, eventIDs, at)
	})
}

// RemoveEventsFromCollection removes events from a collection
func (r *CollectionRepository) RemoveEventsFromCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error {
	eventIDs = uniqueStrings(eventIDs)
	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := touchCollection(ctx, tx, collectionID, at); err != nil {
			return err
		}
		if len(eventIDs) == 0 {
			return nil
		}
		query, args, err := sqlx.In(`DELETE FROM collection_events WHERE collection_id = ? AND event_id IN (?)`, collectionID, eventIDs)
		if err != nil {
			return fmt.Errorf("sqlite: build membership delete: %w", err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
		return mapError(err)
	})
}

func (r *CollectionRepository) hydrate(ctx context.Context, rows []collectionRow) ([]persistence.Collection, error) {
	collections := make([]persistence.Collection, 0, len(rows))
	if len(rows) == 0 {
		return collections, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	query, args, err := sqlx.In(`
		SELECT ce.collection_id, ce.event_id
		FROM collection_events ce
		JOIN events e ON e.id = ce.event_id
		WHERE ce.collection_id IN (?)
		ORDER BY e.start_at ASC, e.id ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: build membership query: %w", err)
	}
	var memberships []membershipRow
	if err := r.pool.DB().SelectContext(ctx, &memberships, r.pool.DB().Rebind(query), args...); err != nil {
		return nil, mapError(err)
	}

	eventsByCollection := make(map[string][]string, len(rows))
	for _, m := range memberships {
		eventsByCollection[m.CollectionID] = append(eventsByCollection[m.CollectionID], m.EventID)
	}

	for _, row := range rows {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		updatedAt, err := parseTime(row.UpdatedAt)
		if err != nil {
			return nil, err
		}
		collections = append(collections, persistence.Collection{
			ID:        row.ID,
			Name:      row.Name,
			Slug:      row.Slug,
			OwnerID:   row.OwnerID,
			EventIDs:  eventsByCollection[row.ID],
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		})
	}
	return collections, nil
}

func touchCollection(ctx context.Context, tx *sqlx.Tx, collectionID string, at time.Time) error {
	result, err := tx.ExecContext(ctx, `UPDATE collections SET updated_at = ? WHERE id = ?`, formatTime(at), collectionID)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

func insertMemberships(ctx context.Context, tx *sqlx.Tx, collectionID string, eventIDs []string, at time.Time) error {
	for _, eventID := range uniqueStrings(eventIDs) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collection_events (collection_id, event_id, added_at)
			VALUES (?, ?, ?)
			ON CONFLICT (collection_id, event_id) DO NOTHING`,
			collectionID, eventID, formatTime(at),
		)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}
