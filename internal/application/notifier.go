package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/eventrsvp/internal/calendar"
)

// MissingUserPolicy decides what the marking loop does when the invited email
// has no user record.
type MissingUserPolicy int

const (
	// MissingUserStop ends the marking loop at the first missing user.
	MissingUserStop MissingUserPolicy = iota
	// MissingUserSkip moves on to the next event.
	MissingUserSkip
)

// InviteNotifierConfig carries the settings of the invite flow.
type InviteNotifierConfig struct {
	// Host is the deployment host used in RSVP links. Required.
	Host        string
	MissingUser MissingUserPolicy
}

// InviteEventLoader loads the events an invite is sent for.
type InviteEventLoader interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// AttendeeDirectory resolves invited emails to users.
type AttendeeDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// RsvpMarker flags RSVPs whose attendee received a calendar invite.
type RsvpMarker interface {
	MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error
}

// InviteNotifier sends calendar invites and records them on the matching RSVPs.
type InviteNotifier struct {
	events   InviteEventLoader
	users    AttendeeDirectory
	rsvps    RsvpMarker
	calendar CalendarAdapter
	config   InviteNotifierConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewInviteNotifier wires dependencies for the invite flow.
func NewInviteNotifier(events InviteEventLoader, users AttendeeDirectory, rsvps RsvpMarker, adapter CalendarAdapter, config InviteNotifierConfig, now func() time.Time, logger *slog.Logger) *InviteNotifier {
	if now == nil {
		now = time.Now
	}
	config.Host = strings.TrimSpace(config.Host)
	return &InviteNotifier{
		events:   events,
		users:    users,
		rsvps:    rsvps,
		calendar: adapter,
		config:   config,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// SendInvites invites email to every event in params.EventIDs with a single
// adapter call, then marks the attendee's RSVPs as added to the calendar.
// Marking is best effort: failures are logged and no transaction spans the loop.
func (n *InviteNotifier) SendInvites(ctx context.Context, params SendInvitesParams) (err error) {
	if n == nil {
		return fmt.Errorf("InviteNotifier is nil")
	}

	email := normalizeEmail(params.Email)
	logger := serviceLogger(ctx, n.logger, "InviteNotifier", "SendInvites",
		"event_count", len(params.EventIDs),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send invites", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "invites sent")
	}()

	vErr := &ValidationError{}
	if len(params.EventIDs) == 0 {
		vErr.add("event_ids", "at least one event id is required")
	}
	if email == "" {
		vErr.add("email", "email is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if n.config.Host == "" {
		err = fmt.Errorf("%w: deployment host", ErrMissingConfiguration)
		return
	}
	if n.calendar == nil || n.events == nil {
		err = fmt.Errorf("%w: calendar adapter", ErrMissingConfiguration)
		return
	}

	var events []Event
	events, err = n.events.ListEvents(ctx, EventFilter{IDs: params.EventIDs})
	if err != nil {
		err = fmt.Errorf("load events: %w", err)
		return
	}

	if err = n.calendar.SendInvite(ctx, n.inviteTargets(ctx, logger, params.EventIDs, events), email); err != nil {
		err = fmt.Errorf("send invites: %w", err)
		return
	}

	n.markAdded(ctx, logger, params.EventIDs, email)
	return nil
}

func (n *InviteNotifier) inviteTargets(ctx context.Context, logger *slog.Logger, ids []string, events []Event) []calendar.InviteTarget {
	byID := make(map[string]Event, len(events))
	for _, event := range events {
		byID[event.ID] = event
	}

	targets := make([]calendar.InviteTarget, 0, len(ids))
	for _, id := range ids {
		event, ok := byID[id]
		if !ok {
			logger.WarnContext(ctx, "skipping invite for unknown event", "event_id", id)
			continue
		}
		targets = append(targets, calendar.InviteTarget{
			CalendarID: event.GCalID,
			EventID:    event.GCalEventID,
			Title:      event.Title,
			RSVPURL:    RSVPLink(n.config.Host, event.Hash),
		})
	}
	return targets
}

func (n *InviteNotifier) markAdded(ctx context.Context, logger *slog.Logger, eventIDs []string, email string) {
	if n.users == nil || n.rsvps == nil {
		logger.WarnContext(ctx, "rsvp marking not configured")
		return
	}

	marked := 0
	for _, eventID := range eventIDs {
		user, err := n.users.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(mapRepoError(err), ErrNotFound) {
				if n.config.MissingUser == MissingUserSkip {
					logger.WarnContext(ctx, "no user for invited email, skipping event", "event_id", eventID)
					continue
				}
				logger.WarnContext(ctx, "no user for invited email, stopping rsvp marking", "event_id", eventID)
				break
			}
			logger.ErrorContext(ctx, "failed to look up invited user", "event_id", eventID, "error", err)
			continue
		}

		if err := n.rsvps.MarkAddedToCalendar(ctx, eventID, user.ID, n.now()); err != nil {
			logger.ErrorContext(ctx, "failed to mark rsvp as added to calendar",
				"event_id", eventID,
				"user_id", user.ID,
				"error", err,
				"error_kind", ErrorKind(err),
			)
			continue
		}
		marked++
	}
	logger.DebugContext(ctx, "rsvp marking finished", "marked_count", marked)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
