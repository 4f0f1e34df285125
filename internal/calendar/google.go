package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
	gcal "google.golang.org/api/calendar/v3"
)

// sendUpdatesAll asks Google to email every guest about the change.
const sendUpdatesAll = "all"

// rsvpSourceTitle labels the link back to the event's RSVP page.
const rsvpSourceTitle = "RSVP"

// GoogleClient implements the calendar adapter over the Google Calendar v3 API.
// Every provider call waits on the limiter first.
type GoogleClient struct {
	service *gcal.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGoogleClient wraps an authenticated calendar service. A nil limiter disables pacing.
func NewGoogleClient(service *gcal.Service, limiter *rate.Limiter, logger *slog.Logger) *GoogleClient {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &GoogleClient{
		service: service,
		limiter: limiter,
		logger:  logger.With("component", "google_calendar"),
	}
}

// NewLimiter returns a limiter allowing qps calls per second with a burst of at least one.
func NewLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(qps), burst)
}

// CreateEvent inserts a new event into calendarID.
func (c *GoogleClient) CreateEvent(ctx context.Context, calendarID string, payload Event) (Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Event{}, err
	}

	created, err := c.service.Events.Insert(calendarID, toGoogleEvent(payload)).
		SendUpdates(sendUpdatesAll).
		Context(ctx).
		Do()
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: insert event in %s: %w", calendarID, err)
	}

	c.logger.InfoContext(ctx, "created remote event", "calendar_id", calendarID, "remote_event_id", created.Id)
	return fromGoogleEvent(created), nil
}

// UpdateEvent replaces the remote event and notifies its guests.
func (c *GoogleClient) UpdateEvent(ctx context.Context, calendarID, eventID string, payload Event) (Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Event{}, err
	}

	updated, err := c.service.Events.Update(calendarID, eventID, toGoogleEvent(payload)).
		SendUpdates(sendUpdatesAll).
		Context(ctx).
		Do()
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: update event %s: %w", eventID, err)
	}

	c.logger.DebugContext(ctx, "updated remote event", "calendar_id", calendarID, "remote_event_id", updated.Id)
	return fromGoogleEvent(updated), nil
}

// GetEvent fetches a remote event.
func (c *GoogleClient) GetEvent(ctx context.Context, calendarID, eventID string) (Event, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Event{}, err
	}

	remote, err := c.service.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("google calendar: get event %s: %w", eventID, err)
	}
	return fromGoogleEvent(remote), nil
}

// SendInvite adds email as a guest to every linked target. Targets without a
// remote linkage are skipped. A remote event without a source link gets the
// target's RSVP page as its source. The first provider error stops the run.
func (c *GoogleClient) SendInvite(ctx context.Context, targets []InviteTarget, email string) error {
	for _, target := range targets {
		logger := c.logger.With("calendar_id", target.CalendarID, "remote_event_id", target.EventID)
		if target.CalendarID == "" || target.EventID == "" {
			logger.WarnContext(ctx, "skipping invite for unlinked event", "title", target.Title)
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		remote, err := c.service.Events.Get(target.CalendarID, target.EventID).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("google calendar: get event %s: %w", target.EventID, err)
		}

		if hasAttendee(remote.Attendees, email) {
			logger.DebugContext(ctx, "guest already invited")
			continue
		}

		patch := &gcal.Event{
			Attendees: append(remote.Attendees, &gcal.EventAttendee{Email: email}),
		}
		if remote.Source == nil && target.RSVPURL != "" {
			patch.Source = &gcal.EventSource{Title: rsvpSourceTitle, Url: target.RSVPURL}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.service.Events.Patch(target.CalendarID, target.EventID, patch).
			SendUpdates(sendUpdatesAll).
			Context(ctx).
			Do(); err != nil {
			return fmt.Errorf("google calendar: invite to event %s: %w", target.EventID, err)
		}
		logger.InfoContext(ctx, "invited guest")
	}
	return nil
}

func hasAttendee(attendees []*gcal.EventAttendee, email string) bool {
	for _, attendee := range attendees {
		if attendee != nil && strings.EqualFold(attendee.Email, email) {
			return true
		}
	}
	return false
}

func toGoogleEvent(payload Event) *gcal.Event {
	event := &gcal.Event{
		Summary:     payload.Summary,
		Description: payload.Description,
		Location:    payload.Location,
		Start:       &gcal.EventDateTime{DateTime: payload.Start},
		End:         &gcal.EventDateTime{DateTime: payload.End},
	}
	for _, attendee := range payload.Attendees {
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{
			Email:          attendee.Email,
			DisplayName:    attendee.DisplayName,
			ResponseStatus: attendee.ResponseStatus,
			Optional:       attendee.Optional,
		})
	}
	if payload.SourceURL != "" {
		event.Source = &gcal.EventSource{Title: rsvpSourceTitle, Url: payload.SourceURL}
	}
	return event
}

func fromGoogleEvent(remote *gcal.Event) Event {
	if remote == nil {
		return Event{}
	}
	event := Event{
		ID:          remote.Id,
		Summary:     remote.Summary,
		Description: remote.Description,
		Location:    remote.Location,
		HTMLLink:    remote.HtmlLink,
	}
	if remote.Start != nil {
		event.Start = remote.Start.DateTime
	}
	if remote.End != nil {
		event.End = remote.End.DateTime
	}
	if remote.Source != nil {
		event.SourceURL = remote.Source.Url
	}
	for _, attendee := range remote.Attendees {
		if attendee == nil {
			continue
		}
		event.Attendees = append(event.Attendees, Attendee{
			Email:          attendee.Email,
			DisplayName:    attendee.DisplayName,
			ResponseStatus: attendee.ResponseStatus,
			Optional:       attendee.Optional,
		})
	}
	return event
}
