package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/eventrsvp/internal/persistence"
)

// RsvpRepository implements persistence.RsvpRepository using SQLite
type RsvpRepository struct {
	pool *ConnectionPool
}

// NewRsvpRepository creates a new SQLite RSVP repository
func NewRsvpRepository(pool *ConnectionPool) *RsvpRepository {
	return &RsvpRepository{pool: pool}
}

type rsvpRow struct {
	ID                      string         `db:"id"`
	EventID                 string         `db:"event_id"`
	AttendeeID              string         `db:"attendee_id"`
	AttendeeNickname        sql.NullString `db:"attendee_nickname"`
	AttendeeEmail           sql.NullString `db:"attendee_email"`
	IsAddedToGoogleCalendar bool           `db:"is_added_to_google_calendar"`
	CreatedAt               string         `db:"created_at"`
	UpdatedAt               string         `db:"updated_at"`
}

func (r rsvpRow) toRsvp() (persistence.Rsvp, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return persistence.Rsvp{}, err
	}
	updatedAt, err := parseTime(r.UpdatedAt)
	if err != nil {
		return persistence.Rsvp{}, err
	}
	return persistence.Rsvp{
		ID:                      r.ID,
		EventID:                 r.EventID,
		AttendeeID:              r.AttendeeID,
		AttendeeNickname:        r.AttendeeNickname.String,
		AttendeeEmail:           stringPtr(r.AttendeeEmail),
		IsAddedToGoogleCalendar: r.IsAddedToGoogleCalendar,
		CreatedAt:               createdAt,
		UpdatedAt:               updatedAt,
	}, nil
}

const rsvpSelect = `
	SELECT r.id, r.event_id, r.attendee_id, u.nickname AS attendee_nickname, u.email AS attendee_email,
	       r.is_added_to_google_calendar, r.created_at, r.updated_at
	FROM rsvps r
	LEFT JOIN users u ON u.id = r.attendee_id`

// CreateRsvp inserts a new RSVP. A second RSVP for the same pair is ErrDuplicate.
func (r *RsvpRepository) CreateRsvp(ctx context.Context, rsvp persistence.Rsvp) error {
	if rsvp.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO rsvps (id, event_id, attendee_id, is_added_to_google_calendar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rsvp.ID,
		rsvp.EventID,
		rsvp.AttendeeID,
		rsvp.IsAddedToGoogleCalendar,
		formatTime(rsvp.CreatedAt),
		formatTime(rsvp.UpdatedAt),
	)
	return mapError(err)
}

// GetRsvp retrieves the RSVP of an attendee for an event
func (r *RsvpRepository) GetRsvp(ctx context.Context, eventID, attendeeID string) (persistence.Rsvp, error) {
	var row rsvpRow
	if err := r.pool.DB().GetContext(ctx, &row,
		rsvpSelect+` WHERE r.event_id = ? AND r.attendee_id = ?`, eventID, attendeeID); err != nil {
		return persistence.Rsvp{}, mapError(err)
	}
	return row.toRsvp()
}

// ListRsvpsForEvent returns the RSVPs of an event in the order they were made
func (r *RsvpRepository) ListRsvpsForEvent(ctx context.Context, eventID string) ([]persistence.Rsvp, error) {
	var rows []rsvpRow
	if err := r.pool.DB().SelectContext(ctx, &rows,
		rsvpSelect+` WHERE r.event_id = ? ORDER BY r.created_at ASC, r.id ASC`, eventID); err != nil {
		return nil, mapError(err)
	}

	rsvps := make([]persistence.Rsvp, 0, len(rows))
	for _, row := range rows {
		rsvp, err := row.toRsvp()
		if err != nil {
			return nil, err
		}
		rsvps = append(rsvps, rsvp)
	}
	return rsvps, nil
}

// MarkAddedToCalendar flags the RSVP of attendeeID for eventID as invited
func (r *RsvpRepository) MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE rsvps
		SET is_added_to_google_calendar = 1, updated_at = ?
		WHERE event_id = ? AND attendee_id = ?`,
		formatTime(at), eventID, attendeeID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}

// DeleteRsvp removes the RSVP of attendeeID for eventID
func (r *RsvpRepository) DeleteRsvp(ctx context.Context, eventID, attendeeID string) error {
	result, err := r.pool.DB().ExecContext(ctx,
		`DELETE FROM rsvps WHERE event_id = ? AND attendee_id = ?`, eventID, attendeeID)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(result)
}
