package application

import (
	"strings"
	"time"

	"github.com/example/eventrsvp/internal/calendar"
)

const cancelledPrefix = "CANCELLED: "

// RSVPLink returns the public RSVP page of the event with hash. Hosts naming
// localhost are served over plain http.
func RSVPLink(host, hash string) string {
	protocol := "https"
	if strings.Contains(host, "localhost") {
		protocol = "http"
	}
	return protocol + "://" + host + "/rsvp/" + hash
}

// calendarPayload renders the remote representation of event.
func calendarPayload(event Event, host string) calendar.Event {
	title := event.Title
	if event.IsDeleted {
		title = cancelledPrefix + title
	}

	link := RSVPLink(host, event.Hash)
	parts := make([]string, 0, 3)
	if event.Description != "" {
		parts = append(parts, event.Description)
	}
	if event.Proposer != nil && event.Proposer.Nickname != "" {
		parts = append(parts, "Proposed by "+event.Proposer.Nickname)
	}
	parts = append(parts, "RSVP: "+link)

	return calendar.Event{
		Summary:     title,
		Description: strings.Join(parts, "\n\n"),
		Location:    event.Location,
		Start:       event.Start.UTC().Format(time.RFC3339),
		End:         event.End.UTC().Format(time.RFC3339),
		SourceURL:   link,
	}
}
