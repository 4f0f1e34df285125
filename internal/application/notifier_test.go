package application

import (
	"context"
	"errors"
	"testing"
)

type notifierFixture struct {
	events   *eventRepoStub
	users    *userRepoStub
	rsvps    *rsvpRepoStub
	calendar *calendarStub
}

func newNotifierFixture() notifierFixture {
	a := syncEvent("a")
	b := syncEvent("b")
	unlinked := syncEvent("c")
	unlinked.GCalEventID = ""
	unlinked.GCalID = ""

	guest := User{ID: "u1", Email: "guest@example.com", Nickname: "Guest"}
	return notifierFixture{
		events: newEventRepoStub(a, b, unlinked),
		users:  newUserRepoStub(guest),
		rsvps: newRsvpRepoStub(
			Rsvp{ID: "r1", EventID: "a", AttendeeID: "u1"},
			Rsvp{ID: "r2", EventID: "b", AttendeeID: "u1"},
		),
		calendar: newCalendarStub(),
	}
}

func (f notifierFixture) notifier(config InviteNotifierConfig) *InviteNotifier {
	return NewInviteNotifier(f.events, f.users, f.rsvps, f.calendar, config, fixedNow, discardLogger())
}

func TestInviteNotifier_Validation(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	err := f.notifier(InviteNotifierConfig{Host: "example.com"}).SendInvites(context.Background(), SendInvitesParams{Email: " "})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"event_ids", "email"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected %s error, got %v", field, vErr.FieldErrors)
		}
	}
	if f.calendar.callCount() != 0 {
		t.Fatalf("expected no adapter calls")
	}
}

func TestInviteNotifier_MissingHost(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	err := f.notifier(InviteNotifierConfig{}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"a"},
		Email:    "guest@example.com",
	})
	if !errors.Is(err, ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if f.calendar.callCount() != 0 || len(f.rsvps.marks) != 0 {
		t.Fatalf("expected no side effects without a host")
	}
}

func TestInviteNotifier_SendsSingleInviteAndMarks(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	err := f.notifier(InviteNotifierConfig{Host: "localhost:3000"}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"b", "a", "c"},
		Email:    "  Guest@Example.com ",
	})
	if err != nil {
		t.Fatalf("SendInvites failed: %v", err)
	}

	if len(f.calendar.invites) != 1 {
		t.Fatalf("expected a single adapter call, got %d", len(f.calendar.invites))
	}
	call := f.calendar.invites[0]
	if call.Email != "guest@example.com" {
		t.Fatalf("expected normalized email, got %q", call.Email)
	}
	if len(call.Targets) != 3 {
		t.Fatalf("expected 3 targets, got %#v", call.Targets)
	}
	if call.Targets[0].EventID != "remote-b" || call.Targets[0].RSVPURL != "http://localhost:3000/rsvp/hash-b" {
		t.Fatalf("unexpected first target: %#v", call.Targets[0])
	}
	if call.Targets[2].EventID != "" {
		t.Fatalf("expected unlinked target to carry no remote id, got %#v", call.Targets[2])
	}

	for _, id := range []string{"a", "b"} {
		rsvp, _ := f.rsvps.GetRsvp(context.Background(), id, "u1")
		if !rsvp.IsAddedToGoogleCalendar {
			t.Fatalf("expected rsvp for %s to be marked", id)
		}
	}
}

func TestInviteNotifier_StopsAtFirstMissingUser(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	f.users.emailResults = []error{ErrNotFound}

	err := f.notifier(InviteNotifierConfig{Host: "example.com"}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"a", "b"},
		Email:    "guest@example.com",
	})
	if err != nil {
		t.Fatalf("SendInvites failed: %v", err)
	}
	if f.users.emailCalls != 1 {
		t.Fatalf("expected loop to stop after first lookup, got %d lookups", f.users.emailCalls)
	}
	if len(f.rsvps.marks) != 0 {
		t.Fatalf("expected no rsvp updates, got %#v", f.rsvps.marks)
	}
}

func TestInviteNotifier_SkipPolicyContinues(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	f.users.emailResults = []error{ErrNotFound}

	err := f.notifier(InviteNotifierConfig{Host: "example.com", MissingUser: MissingUserSkip}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"a", "b"},
		Email:    "guest@example.com",
	})
	if err != nil {
		t.Fatalf("SendInvites failed: %v", err)
	}
	if len(f.rsvps.marks) != 1 || f.rsvps.marks[0].EventID != "b" {
		t.Fatalf("expected only the second event to be marked, got %#v", f.rsvps.marks)
	}
}

func TestInviteNotifier_MarkFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	f.rsvps.markErr["a"] = errors.New("database is locked")

	err := f.notifier(InviteNotifierConfig{Host: "example.com"}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"a", "b"},
		Email:    "guest@example.com",
	})
	if err != nil {
		t.Fatalf("expected marking failure to be swallowed, got %v", err)
	}
	if len(f.rsvps.marks) != 2 {
		t.Fatalf("expected both events to be attempted, got %#v", f.rsvps.marks)
	}
	rsvp, _ := f.rsvps.GetRsvp(context.Background(), "b", "u1")
	if !rsvp.IsAddedToGoogleCalendar {
		t.Fatalf("expected second rsvp to be marked")
	}
}

func TestInviteNotifier_InviteFailure(t *testing.T) {
	t.Parallel()

	f := newNotifierFixture()
	f.calendar.inviteErr = errors.New("forbidden")

	err := f.notifier(InviteNotifierConfig{Host: "example.com"}).SendInvites(context.Background(), SendInvitesParams{
		EventIDs: []string{"a"},
		Email:    "guest@example.com",
	})
	if err == nil {
		t.Fatalf("expected invite error")
	}
	if len(f.rsvps.marks) != 0 {
		t.Fatalf("expected no marking after failed invite")
	}
}
