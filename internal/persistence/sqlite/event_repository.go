package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/eventrsvp/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool *ConnectionPool
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool}
}

type eventRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Location         string         `db:"location"`
	StartAt          string         `db:"start_at"`
	EndAt            string         `db:"end_at"`
	Hash             string         `db:"hash"`
	IsDeleted        bool           `db:"is_deleted"`
	GCalRequested    bool           `db:"gcal_requested"`
	GCalEventID      sql.NullString `db:"gcal_event_id"`
	GCalID           sql.NullString `db:"gcal_id"`
	Type             string         `db:"type"`
	ProposerID       string         `db:"proposer_id"`
	ProposerNickname sql.NullString `db:"proposer_nickname"`
	CreatedAt        string         `db:"created_at"`
	UpdatedAt        string         `db:"updated_at"`
}

func (r eventRow) toEvent() (persistence.Event, error) {
	var (
		event persistence.Event
		err   error
	)
	if event.Start, err = parseTime(r.StartAt); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(r.EndAt); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return persistence.Event{}, err
	}

	event.ID = r.ID
	event.Title = r.Title
	event.Description = r.Description
	event.Location = r.Location
	event.Hash = r.Hash
	event.IsDeleted = r.IsDeleted
	event.GCalRequested = r.GCalRequested
	event.GCalEventID = stringPtr(r.GCalEventID)
	event.GCalID = stringPtr(r.GCalID)
	event.Type = r.Type
	event.ProposerID = r.ProposerID
	event.ProposerNickname = r.ProposerNickname.String
	return event, nil
}

const eventSelect = `
	SELECT e.id, e.title, e.description, e.location, e.start_at, e.end_at, e.hash,
	       e.is_deleted, e.gcal_requested, e.gcal_event_id, e.gcal_id, e.type,
	       e.proposer_id, u.nickname AS proposer_nickname, e.created_at, e.updated_at
	FROM events e
	LEFT JOIN users u ON u.id = e.proposer_id`

// CreateEvent inserts a new event
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.Hash == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO events (id, title, description, location, start_at, end_at, hash,
		                    is_deleted, gcal_requested, gcal_event_id, gcal_id, type,
		                    proposer_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.Description,
		event.Location,
		formatTime(event.Start),
		formatTime(event.End),
		event.Hash,
		event.IsDeleted,
		event.GCalRequested,
		nullableString(event.GCalEventID),
		nullableString(event.GCalID),
		event.Type,
		event.ProposerID,
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	return mapError(err)
}

// UpdateEvent rewrites the editable columns of an event. The remote linkage is
// left untouched and a deleted event stays deleted.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?,
		    type = ?, gcal_requested = ?, is_deleted = MAX(is_deleted, ?), updated_at = ?
		WHERE id = ?`,
		event.Title,
		event.Description,
		event.Location,
		formatTime(event.Start),
		formatTime(event.End),
		event.Type,
		event.GCalRequested,
		event.IsDeleted,
		formatTime(event.UpdatedAt),
		event.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return r.getOne(ctx, eventSelect+` WHERE e.id = ?`, id)
}

// GetEventByHash retrieves an event by its public hash
func (r *EventRepository) GetEventByHash(ctx context.Context, hash string) (persistence.Event, error) {
	return r.getOne(ctx, eventSelect+` WHERE e.hash = ?`, hash)
}

// ListEvents returns events matching filter ordered by start time then ID
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query, args, err := buildEventQuery(filter)
	if err != nil {
		return nil, err
	}
	return r.selectEvents(ctx, r.pool.DB(), query, args...)
}

// MarkEventsDeleted sets the deleted flag on every id and returns the updated
// events. All ids must exist; otherwise nothing is changed.
func (r *EventRepository) MarkEventsDeleted(ctx context.Context, ids []string, at time.Time) ([]persistence.Event, error) {
	ids = uniqueStrings(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var events []persistence.Event
	err := r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(`UPDATE events SET is_deleted = 1, updated_at = ? WHERE id IN (?)`, formatTime(at), ids)
		if err != nil {
			return fmt.Errorf("sqlite: build delete query: %w", err)
		}
		result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if int(affected) != len(ids) {
			return persistence.ErrNotFound
		}

		selectQuery, selectArgs, err := buildEventQuery(persistence.EventFilter{IDs: ids, IncludeDeleted: true})
		if err != nil {
			return err
		}
		events, err = r.selectEvents(ctx, tx, selectQuery, selectArgs...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// LinkRemoteEvent records the remote calendar and event ids of an event. An
// event that is already linked keeps its ids and ErrDuplicate is returned.
func (r *EventRepository) LinkRemoteEvent(ctx context.Context, id, calendarID, remoteEventID string, at time.Time) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE events
		SET gcal_event_id = ?, gcal_id = ?, updated_at = ?
		WHERE id = ? AND gcal_event_id IS NULL`,
		remoteEventID, calendarID, formatTime(at), id,
	)
	if err != nil {
		return mapError(err)
	}
	if err := requireAffected(result); err == nil || !errors.Is(err, persistence.ErrNotFound) {
		return err
	}

	if _, err := r.GetEvent(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: event %s is already linked to a remote event", persistence.ErrDuplicate, id)
}

func (r *EventRepository) getOne(ctx context.Context, query string, arg any) (persistence.Event, error) {
	var row eventRow
	if err := r.pool.DB().GetContext(ctx, &row, query, arg); err != nil {
		return persistence.Event{}, mapError(err)
	}
	return row.toEvent()
}

func (r *EventRepository) selectEvents(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]persistence.Event, error) {
	var rows []eventRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}

	events := make([]persistence.Event, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func buildEventQuery(filter persistence.EventFilter) (string, []any, error) {
	var (
		conditions []string
		args       []any
	)

	if !filter.IncludeDeleted {
		conditions = append(conditions, "e.is_deleted = 0")
	}
	if filter.ProposerID != "" {
		conditions = append(conditions, "e.proposer_id = ?")
		args = append(args, filter.ProposerID)
	}
	if filter.CollectionID != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM collection_events ce WHERE ce.event_id = e.id AND ce.collection_id = ?)")
		args = append(args, filter.CollectionID)
	}
	if len(filter.IDs) > 0 {
		conditions = append(conditions, "e.id IN (?)")
		args = append(args, filter.IDs)
	}

	query := eventSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.start_at ASC, e.id ASC"

	if len(filter.IDs) == 0 {
		return query, args, nil
	}
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("sqlite: build event query: %w", err)
	}
	return sqlx.Rebind(sqlx.QUESTION, expanded), expandedArgs, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		unique = append(unique, value)
	}
	return unique
}
