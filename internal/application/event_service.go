package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/eventrsvp/internal/calendar"
	"github.com/example/eventrsvp/internal/persistence"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

// EventRepository captures the persistence operations needed by the event service.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	GetEventByHash(ctx context.Context, hash string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	MarkEventsDeleted(ctx context.Context, ids []string, at time.Time) ([]Event, error)
	LinkRemoteEvent(ctx context.Context, id, calendarID, remoteEventID string, at time.Time) error
}

// RsvpLister loads the RSVPs shown with an event.
type RsvpLister interface {
	ListRsvpsForEvent(ctx context.Context, eventID string) ([]Rsvp, error)
}

// EventServiceConfig carries the calendar settings of the event service.
type EventServiceConfig struct {
	// Host is the default deployment host used in RSVP links.
	Host string
	// CalendarID receives newly created remote events.
	CalendarID string
}

// EventService orchestrates validation, persistence, and calendar sync for events.
type EventService struct {
	events        EventRepository
	rsvps         RsvpLister
	calendar      CalendarAdapter
	synchronizer  *EventSynchronizer
	config        EventServiceConfig
	idGenerator   func() string
	hashGenerator func() string
	now           func() time.Time
	logger        *slog.Logger
}

// NewEventService constructs an event service with the provided dependencies.
func NewEventService(events EventRepository, rsvps RsvpLister, adapter CalendarAdapter, config EventServiceConfig, idGenerator, hashGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, rsvps, adapter, config, idGenerator, hashGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an event service with a specified logger.
// A nil adapter disables calendar integration.
func NewEventServiceWithLogger(events EventRepository, rsvps RsvpLister, adapter CalendarAdapter, config EventServiceConfig, idGenerator, hashGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if hashGenerator == nil {
		hashGenerator = idGenerator
	}
	if now == nil {
		now = time.Now
	}
	logger = defaultLogger(logger)
	config.Host = strings.TrimSpace(config.Host)
	config.CalendarID = strings.TrimSpace(config.CalendarID)
	return &EventService{
		events:        events,
		rsvps:         rsvps,
		calendar:      adapter,
		synchronizer:  NewEventSynchronizer(adapter, logger),
		config:        config,
		idGenerator:   idGenerator,
		hashGenerator: hashGenerator,
		now:           now,
		logger:        logger,
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates and persists a new proposal. When a calendar entry is
// requested the remote event is created as well; a provider failure leaves the
// local event unlinked instead of failing the request.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent",
		"proposer_id", params.ProposerID,
		"gcal_requested", params.GCalRequested,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID, "hash", event.Hash).InfoContext(ctx, "event created")
	}()

	input := normalizeEventInput(params.Input)
	vErr := validateEventInput(input, "")
	if strings.TrimSpace(params.ProposerID) == "" {
		vErr.add("proposer_id", "proposer is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	event = Event{
		ID:            s.idGenerator(),
		Title:         input.Title,
		Description:   input.Description,
		Location:      input.Location,
		Start:         input.Start,
		End:           input.End,
		Hash:          s.hashGenerator(),
		GCalRequested: params.GCalRequested,
		Type:          input.Type,
		ProposerID:    strings.TrimSpace(params.ProposerID),
		CreatedAt:     s.now(),
	}
	event.UpdatedAt = event.CreatedAt

	if s.events == nil {
		return
	}

	var persisted Event
	persisted, err = s.events.CreateEvent(ctx, event)
	if err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			vErr := &ValidationError{}
			vErr.add("proposer_id", "proposer does not exist")
			err = vErr
			return
		}
		err = mapRepoError(err)
		return
	}
	event = persisted

	if event.GCalRequested {
		event = s.createRemoteEvent(ctx, logger, event)
	}
	return
}

func (s *EventService) createRemoteEvent(ctx context.Context, logger *slog.Logger, event Event) Event {
	if s.calendar == nil || s.config.CalendarID == "" || s.config.Host == "" {
		logger.WarnContext(ctx, "calendar integration not configured, event left unlinked", "event_id", event.ID)
		return event
	}

	remote, err := s.calendar.CreateEvent(ctx, s.config.CalendarID, calendarPayload(event, s.config.Host))
	if err != nil {
		logger.ErrorContext(ctx, "failed to create remote event", "event_id", event.ID, "error", err)
		return event
	}

	if err := s.events.LinkRemoteEvent(ctx, event.ID, s.config.CalendarID, remote.ID, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to store remote event id",
			"event_id", event.ID,
			"remote_event_id", remote.ID,
			"error", err,
		)
		return event
	}

	event.GCalID = s.config.CalendarID
	event.GCalEventID = remote.ID
	return event
}

// UpdateEvents applies a batch of edits, then pushes the linked events to the
// calendar provider. Deleted events cannot be edited.
func (s *EventService) UpdateEvents(ctx context.Context, params UpdateEventsParams) (result EventBatchResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvents", "event_count", len(params.Updates))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "events updated", "synced_count", len(result.Synced))
	}()

	vErr := &ValidationError{}
	if len(params.Updates) == 0 {
		vErr.add("events", "at least one event is required")
	}
	inputs := make([]EventInput, len(params.Updates))
	for i, update := range params.Updates {
		inputs[i] = normalizeEventInput(update.Input)
		prefix := fmt.Sprintf("events[%d].", i)
		if strings.TrimSpace(update.EventID) == "" {
			vErr.add(prefix+"id", "event id is required")
		}
		vErr.merge(validateEventInput(inputs[i], prefix))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := make([]Event, 0, len(params.Updates))
	for i, update := range params.Updates {
		var existing Event
		existing, err = s.events.GetEvent(ctx, update.EventID)
		if err != nil {
			err = fmt.Errorf("event %s: %w", update.EventID, mapRepoError(err))
			return
		}
		if existing.IsDeleted {
			err = fmt.Errorf("event %s: %w", update.EventID, ErrEventDeleted)
			return
		}

		next := existing
		next.Title = inputs[i].Title
		next.Description = inputs[i].Description
		next.Location = inputs[i].Location
		next.Start = inputs[i].Start
		next.End = inputs[i].End
		next.Type = inputs[i].Type
		next.UpdatedAt = s.now()

		var persisted Event
		persisted, err = s.events.UpdateEvent(ctx, next)
		if err != nil {
			err = fmt.Errorf("event %s: %w", update.EventID, mapRepoError(err))
			return
		}
		updated = append(updated, persisted)
	}

	result.Events = updated
	result.Synced, err = s.syncLinked(ctx, logger, updated, nil, params.Host)
	if err != nil {
		result = EventBatchResult{}
	}
	return
}

// DeleteEvents soft deletes a batch of events and cancels their remote copies.
func (s *EventService) DeleteEvents(ctx context.Context, params DeleteEventsParams) (result EventBatchResult, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "DeleteEvents", "event_count", len(params.EventIDs))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "events deleted", "synced_count", len(result.Synced))
	}()

	ids := compactIDs(params.EventIDs)
	if len(ids) == 0 {
		vErr := &ValidationError{}
		vErr.add("event_ids", "at least one event id is required")
		err = vErr
		return
	}

	var deleted []Event
	deleted, err = s.events.MarkEventsDeleted(ctx, ids, s.now())
	if err != nil {
		err = mapRepoError(err)
		return
	}

	result.Events = deleted
	result.Synced, err = s.syncLinked(ctx, logger, nil, deleted, params.Host)
	if err != nil {
		result = EventBatchResult{}
	}
	return
}

// syncLinked forwards the events that have a remote counterpart to the synchronizer.
func (s *EventService) syncLinked(ctx context.Context, logger *slog.Logger, updated, deleted []Event, host string) ([]SyncedEvent, error) {
	linkedUpdated := linkedEvents(updated)
	linkedDeleted := linkedEvents(deleted)
	if len(linkedUpdated)+len(linkedDeleted) == 0 {
		return nil, nil
	}
	if s.calendar == nil {
		logger.WarnContext(ctx, "calendar integration not configured, remote events left stale",
			"linked_count", len(linkedUpdated)+len(linkedDeleted),
		)
		return nil, nil
	}

	if strings.TrimSpace(host) == "" {
		host = s.config.Host
	}
	return s.synchronizer.SyncEvents(ctx, SyncEventsParams{
		Updated: linkedUpdated,
		Deleted: linkedDeleted,
		Host:    host,
	})
}

// GetEventByHash returns the event with hash together with its RSVPs.
func (s *EventService) GetEventByHash(ctx context.Context, hash string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return Event{}, ErrNotFound
	}

	event, err := s.events.GetEventByHash(ctx, strings.TrimSpace(hash))
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	if s.rsvps != nil {
		event.Rsvps, err = s.rsvps.ListRsvpsForEvent(ctx, event.ID)
		if err != nil {
			return Event{}, mapRepoError(err)
		}
	}
	return event, nil
}

// ListEvents returns events matching filter ordered by start time.
func (s *EventService) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, nil
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return events, nil
}

// WriteICS renders the event with hash as an iCalendar document.
func (s *EventService) WriteICS(ctx context.Context, w io.Writer, hash string) error {
	event, err := s.GetEventByHash(ctx, hash)
	if err != nil {
		return err
	}

	entry := calendar.ICSEvent{
		UID:         event.Hash,
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.Start,
		End:         event.End,
		Stamp:       event.UpdatedAt,
		Cancelled:   event.IsDeleted,
	}
	if event.Proposer != nil {
		entry.Organizer = event.Proposer.Nickname
	}
	if s.config.Host != "" {
		entry.URL = RSVPLink(s.config.Host, event.Hash)
	}
	return calendar.EncodeICS(w, entry)
}

func linkedEvents(events []Event) []Event {
	var linked []Event
	for _, event := range events {
		if event.GCalEventID != "" {
			linked = append(linked, event)
		}
	}
	return linked
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizeEventInput(input EventInput) EventInput {
	eventType := EventType(strings.ToUpper(strings.TrimSpace(string(input.Type))))
	if eventType == "" {
		eventType = EventTypeQuick
	}
	return EventInput{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Start:       input.Start.UTC(),
		End:         input.End.UTC(),
		Type:        eventType,
	}
}

func validateEventInput(input EventInput, prefix string) *ValidationError {
	vErr := &ValidationError{}

	switch {
	case input.Title == "":
		vErr.add(prefix+"title", "title is required")
	case utf8.RuneCountInString(input.Title) > maxTitleLength:
		vErr.add(prefix+"title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionLength {
		vErr.add(prefix+"description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}

	if input.Start.IsZero() {
		vErr.add(prefix+"start", "start time is required")
	}
	if input.End.IsZero() {
		vErr.add(prefix+"end", "end time is required")
	} else if !input.Start.IsZero() && !input.End.After(input.Start) {
		vErr.add(prefix+"end", "end time must be after start time")
	}

	if !input.Type.Valid() {
		vErr.add(prefix+"type", "type must be QUICK or SCHEDULED")
	}

	return vErr
}
