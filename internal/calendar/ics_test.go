package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func TestEncodeICS(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := EncodeICS(&buf,
		ICSEvent{
			UID:         "abc123",
			Summary:     "Launch party",
			Description: "Bring snacks",
			Location:    "Rooftop",
			URL:         "https://example.com/rsvp/abc123",
			Organizer:   "Ada",
			Start:       start,
			End:         start.Add(time.Hour),
			Stamp:       start.Add(-time.Hour),
		},
		ICSEvent{
			UID:       "def456",
			Summary:   "Retro",
			Start:     start,
			End:       start.Add(time.Hour),
			Stamp:     start,
			Cancelled: true,
		},
	)
	if err != nil {
		t.Fatalf("EncodeICS failed: %v", err)
	}

	raw := buf.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "PRODID:" + productID, "DTSTART:20240102T150000Z", "URL:https://example.com/rsvp/abc123"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %q in output:\n%s", want, raw)
		}
	}

	cal, err := ical.NewDecoder(strings.NewReader(raw)).Decode()
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	uid, _ := events[0].Props.Text(ical.PropUID)
	status, _ := events[0].Props.Text(ical.PropStatus)
	if uid != "abc123" || status != "CONFIRMED" {
		t.Fatalf("unexpected first event uid=%q status=%q", uid, status)
	}
	status, _ = events[1].Props.Text(ical.PropStatus)
	if status != "CANCELLED" {
		t.Fatalf("expected cancelled status, got %q", status)
	}
}

func TestEncodeICS_InvalidURL(t *testing.T) {
	t.Parallel()

	err := EncodeICS(&bytes.Buffer{}, ICSEvent{UID: "x", URL: "://bad", Start: time.Now(), End: time.Now(), Stamp: time.Now()})
	if err == nil {
		t.Fatalf("expected url parse error")
	}
}
