package application

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func validEventInput() EventInput {
	start := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	return EventInput{
		Title:       "  Rooftop drinks ",
		Description: "Bring a friend",
		Location:    "Rooftop",
		Start:       start,
		End:         start.Add(time.Hour),
	}
}

func newTestEventService(repo *eventRepoStub, rsvps RsvpLister, adapter CalendarAdapter, config EventServiceConfig) *EventService {
	return NewEventServiceWithLogger(repo, rsvps, adapter, config, sequenceIDs("evt-"), sequenceIDs("hash-"), fixedNow, discardLogger())
}

func TestEventService_CreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()
		svc := newTestEventService(newEventRepoStub(), nil, nil, EventServiceConfig{})

		input := validEventInput()
		input.Title = " "
		input.End = input.Start
		input.Type = "WEEKLY"

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{Input: input})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"title", "end", "type", "proposer_id"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("persists with defaults", func(t *testing.T) {
		t.Parallel()
		repo := newEventRepoStub()
		adapter := newCalendarStub()
		svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com", CalendarID: "primary"})

		event, err := svc.CreateEvent(context.Background(), CreateEventParams{ProposerID: "u1", Input: validEventInput()})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if event.ID != "evt-1" || event.Hash != "hash-1" || event.Type != EventTypeQuick || event.Title != "Rooftop drinks" {
			t.Fatalf("unexpected event: %#v", event)
		}
		if !event.CreatedAt.Equal(testNow) {
			t.Fatalf("expected created at %v, got %v", testNow, event.CreatedAt)
		}
		if adapter.callCount() != 0 {
			t.Fatalf("expected no remote event without a request")
		}
	})

	t.Run("links remote event when requested", func(t *testing.T) {
		t.Parallel()
		repo := newEventRepoStub()
		adapter := newCalendarStub()
		svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com", CalendarID: "primary"})

		event, err := svc.CreateEvent(context.Background(), CreateEventParams{ProposerID: "u1", Input: validEventInput(), GCalRequested: true})
		if err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
		if event.GCalEventID != "remote-created" || event.GCalID != "primary" {
			t.Fatalf("expected remote linkage, got %#v", event)
		}
		if repo.links["evt-1"] != [2]string{"primary", "remote-created"} {
			t.Fatalf("expected link to be stored, got %v", repo.links)
		}
		if !strings.Contains(adapter.created[0].Description, "RSVP: https://example.com/rsvp/hash-1") {
			t.Fatalf("unexpected remote description: %q", adapter.created[0].Description)
		}
	})

	t.Run("provider failure leaves event unlinked", func(t *testing.T) {
		t.Parallel()
		repo := newEventRepoStub()
		adapter := newCalendarStub()
		adapter.createErr = errors.New("backend error")
		svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com", CalendarID: "primary"})

		event, err := svc.CreateEvent(context.Background(), CreateEventParams{ProposerID: "u1", Input: validEventInput(), GCalRequested: true})
		if err != nil {
			t.Fatalf("expected provider failure to be tolerated, got %v", err)
		}
		if event.GCalEventID != "" || len(repo.links) != 0 {
			t.Fatalf("expected event to stay unlinked, got %#v", event)
		}
	})

	t.Run("unknown proposer", func(t *testing.T) {
		t.Parallel()
		svc := newTestEventService(newEventRepoStub(), nil, nil, EventServiceConfig{})

		_, err := svc.CreateEvent(context.Background(), CreateEventParams{ProposerID: "ghost", Input: validEventInput()})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["proposer_id"] == "" {
			t.Fatalf("expected proposer validation error, got %v", err)
		}
	})
}

func TestEventService_UpdateEvents(t *testing.T) {
	t.Parallel()

	t.Run("syncs linked events only", func(t *testing.T) {
		t.Parallel()
		unlinked := syncEvent("b")
		unlinked.GCalEventID = ""
		repo := newEventRepoStub(syncEvent("a"), unlinked)
		adapter := newCalendarStub()
		svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com"})

		input := validEventInput()
		result, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "a", Input: input}, {EventID: "b", Input: input}},
		})
		if err != nil {
			t.Fatalf("UpdateEvents failed: %v", err)
		}
		if len(result.Events) != 2 || result.Events[0].Title != "Rooftop drinks" {
			t.Fatalf("unexpected events: %#v", result.Events)
		}
		if len(result.Synced) != 1 || result.Synced[0].EventID != "a" {
			t.Fatalf("unexpected pairs: %#v", result.Synced)
		}
		if adapter.updates["remote-a"].Summary != "Rooftop drinks" {
			t.Fatalf("expected remote title to follow the edit, got %q", adapter.updates["remote-a"].Summary)
		}
		if repo.events["a"].GCalEventID != "remote-a" {
			t.Fatalf("expected remote id to be kept")
		}
	})

	t.Run("request host overrides config", func(t *testing.T) {
		t.Parallel()
		repo := newEventRepoStub(syncEvent("a"))
		adapter := newCalendarStub()
		svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com"})

		if _, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "a", Input: validEventInput()}},
			Host:    "localhost:3000",
		}); err != nil {
			t.Fatalf("UpdateEvents failed: %v", err)
		}
		if !strings.Contains(adapter.updates["remote-a"].Description, "http://localhost:3000/rsvp/hash-a") {
			t.Fatalf("expected localhost link, got %q", adapter.updates["remote-a"].Description)
		}
	})

	t.Run("rejects deleted events", func(t *testing.T) {
		t.Parallel()
		deleted := syncEvent("a")
		deleted.IsDeleted = true
		svc := newTestEventService(newEventRepoStub(deleted), nil, newCalendarStub(), EventServiceConfig{Host: "example.com"})

		_, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "a", Input: validEventInput()}},
		})
		if !errors.Is(err, ErrEventDeleted) {
			t.Fatalf("expected ErrEventDeleted, got %v", err)
		}
	})

	t.Run("reports missing events", func(t *testing.T) {
		t.Parallel()
		svc := newTestEventService(newEventRepoStub(), nil, nil, EventServiceConfig{})
		_, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "missing", Input: validEventInput()}},
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("sync failure fails the batch", func(t *testing.T) {
		t.Parallel()
		adapter := newCalendarStub()
		adapter.updateErr["remote-a"] = errors.New("rate limited")
		svc := newTestEventService(newEventRepoStub(syncEvent("a")), nil, adapter, EventServiceConfig{Host: "example.com"})

		result, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "a", Input: validEventInput()}},
		})
		if err == nil {
			t.Fatalf("expected sync error")
		}
		if len(result.Synced) != 0 || len(result.Events) != 0 {
			t.Fatalf("expected empty result on failure, got %#v", result)
		}
	})

	t.Run("indexes validation errors", func(t *testing.T) {
		t.Parallel()
		svc := newTestEventService(newEventRepoStub(), nil, nil, EventServiceConfig{})
		bad := validEventInput()
		bad.Title = ""
		_, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
			Updates: []EventUpdate{{EventID: "a", Input: validEventInput()}, {EventID: "b", Input: bad}},
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["events[1].title"] == "" {
			t.Fatalf("expected indexed title error, got %v", err)
		}
	})
}

func TestEventService_DeleteEvents(t *testing.T) {
	t.Parallel()

	unlinked := syncEvent("b")
	unlinked.GCalEventID = ""
	repo := newEventRepoStub(syncEvent("a"), unlinked)
	adapter := newCalendarStub()
	svc := newTestEventService(repo, nil, adapter, EventServiceConfig{Host: "example.com"})

	result, err := svc.DeleteEvents(context.Background(), DeleteEventsParams{EventIDs: []string{"a", "b", "a", " "}})
	if err != nil {
		t.Fatalf("DeleteEvents failed: %v", err)
	}
	if len(result.Events) != 2 || !result.Events[0].IsDeleted {
		t.Fatalf("unexpected deleted events: %#v", result.Events)
	}
	if len(result.Synced) != 1 || result.Synced[0].RemoteEventID != "remote-a" {
		t.Fatalf("unexpected pairs: %#v", result.Synced)
	}
	if got := adapter.updates["remote-a"].Summary; got != "CANCELLED: Meetup a" {
		t.Fatalf("expected cancelled remote title, got %q", got)
	}

	if _, err := svc.DeleteEvents(context.Background(), DeleteEventsParams{}); err == nil {
		t.Fatalf("expected validation error for empty batch")
	}
	if _, err := svc.DeleteEvents(context.Background(), DeleteEventsParams{EventIDs: []string{"missing"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEventService_GetEventByHashAndICS(t *testing.T) {
	t.Parallel()

	event := syncEvent("a")
	event.Proposer = &User{ID: "u1", Nickname: "Ada"}
	event.UpdatedAt = testNow
	repo := newEventRepoStub(event)
	rsvps := newRsvpRepoStub(Rsvp{ID: "r1", EventID: "a", AttendeeID: "u2"})
	svc := newTestEventService(repo, rsvps, nil, EventServiceConfig{Host: "example.com"})

	loaded, err := svc.GetEventByHash(context.Background(), "hash-a")
	if err != nil {
		t.Fatalf("GetEventByHash failed: %v", err)
	}
	if len(loaded.Rsvps) != 1 || loaded.Rsvps[0].ID != "r1" {
		t.Fatalf("expected rsvps to be loaded, got %#v", loaded.Rsvps)
	}

	if _, err := svc.GetEventByHash(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var buf bytes.Buffer
	if err := svc.WriteICS(context.Background(), &buf, "hash-a"); err != nil {
		t.Fatalf("WriteICS failed: %v", err)
	}
	for _, want := range []string{"UID:hash-a", "SUMMARY:Meetup a", "URL:https://example.com/rsvp/hash-a"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in ics output:\n%s", want, buf.String())
		}
	}
}

func TestEventService_CalendarDisabled(t *testing.T) {
	t.Parallel()

	repo := newEventRepoStub(syncEvent("a"))
	svc := newTestEventService(repo, nil, nil, EventServiceConfig{})

	result, err := svc.UpdateEvents(context.Background(), UpdateEventsParams{
		Updates: []EventUpdate{{EventID: "a", Input: validEventInput()}},
	})
	if err != nil {
		t.Fatalf("expected local update to succeed without calendar, got %v", err)
	}
	if len(result.Synced) != 0 || len(result.Events) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
}
