package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/example/eventrsvp/internal/calendar"
)

// CalendarAdapter is the calendar provider boundary used by the sync and invite flows.
type CalendarAdapter interface {
	CreateEvent(ctx context.Context, calendarID string, payload calendar.Event) (calendar.Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, payload calendar.Event) (calendar.Event, error)
	GetEvent(ctx context.Context, calendarID, eventID string) (calendar.Event, error)
	SendInvite(ctx context.Context, targets []calendar.InviteTarget, email string) error
}

// EventSynchronizer pushes local event changes to their remote calendar counterparts.
//
// Attendees are preserved with a read-modify-write: the remote event is fetched,
// its attendee list copied onto the outgoing payload, then the event is replaced.
// Attendee changes made remotely between the fetch and the update are lost.
type EventSynchronizer struct {
	calendar CalendarAdapter
	logger   *slog.Logger
}

// NewEventSynchronizer constructs a synchronizer over the given adapter.
func NewEventSynchronizer(adapter CalendarAdapter, logger *slog.Logger) *EventSynchronizer {
	return &EventSynchronizer{calendar: adapter, logger: defaultLogger(logger)}
}

type pendingSync struct {
	event   Event
	payload calendar.Event
}

// SyncEvents updates the remote copy of every updated and deleted event and
// returns the remote/local id pairs of the events that reached the provider.
// Any provider failure fails the whole batch and no pairs are returned.
func (s *EventSynchronizer) SyncEvents(ctx context.Context, params SyncEventsParams) (synced []SyncedEvent, err error) {
	if s == nil {
		err = fmt.Errorf("EventSynchronizer is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "EventSynchronizer", "SyncEvents",
		"updated_count", len(params.Updated),
		"deleted_count", len(params.Deleted),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to sync events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "events synced", "synced_count", len(synced))
	}()

	if s.calendar == nil {
		err = fmt.Errorf("%w: calendar adapter", ErrMissingConfiguration)
		return
	}
	host := strings.TrimSpace(params.Host)
	if host == "" {
		err = fmt.Errorf("%w: deployment host", ErrMissingConfiguration)
		return
	}

	working := make([]Event, 0, len(params.Updated)+len(params.Deleted))
	working = append(working, params.Updated...)
	for _, event := range params.Deleted {
		event.IsDeleted = true
		working = append(working, event)
	}

	for _, event := range working {
		if event.GCalEventID == "" {
			err = fmt.Errorf("%w: event %s", ErrMissingRemoteEventID, event.ID)
			return
		}
	}

	batch := make([]pendingSync, 0, len(working))
	for _, event := range working {
		if event.GCalID == "" {
			logger.ErrorContext(ctx, "skipping event without remote calendar id",
				"event_id", event.ID,
				"remote_event_id", event.GCalEventID,
			)
			continue
		}
		batch = append(batch, pendingSync{event: event, payload: calendarPayload(event, host)})
	}

	results := make([]SyncedEvent, len(batch))
	// A failed update must not cancel its siblings.
	var group errgroup.Group
	for i, item := range batch {
		i, item := i, item
		group.Go(func() error {
			remoteID, err := s.syncOne(ctx, item)
			if err != nil {
				return err
			}
			results[i] = SyncedEvent{RemoteEventID: remoteID, EventID: item.event.ID}
			return nil
		})
	}
	if err = group.Wait(); err != nil {
		return
	}

	synced = results
	return
}

func (s *EventSynchronizer) syncOne(ctx context.Context, item pendingSync) (string, error) {
	event := item.event
	payload := item.payload

	// Deleted events are sent without attendees.
	if !event.IsDeleted {
		remote, err := s.calendar.GetEvent(ctx, event.GCalID, event.GCalEventID)
		if err != nil {
			return "", fmt.Errorf("fetch remote attendees for event %s: %w", event.ID, err)
		}
		payload.Attendees = remote.Attendees
	}

	updated, err := s.calendar.UpdateEvent(ctx, event.GCalID, event.GCalEventID, payload)
	if err != nil {
		return "", fmt.Errorf("update remote event for event %s: %w", event.ID, err)
	}
	if updated.ID == "" {
		return event.GCalEventID, nil
	}
	return updated.ID, nil
}
