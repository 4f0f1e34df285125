package main

import (
	"time"

	"github.com/example/eventrsvp/internal/application"
)

func applicationUser(id, email, nickname string, at time.Time) application.User {
	return application.User{ID: id, Email: email, Nickname: nickname, CreatedAt: at, UpdatedAt: at}
}

func applicationEvent(id, proposerID string, at time.Time) application.Event {
	return application.Event{
		ID:         id,
		Title:      "Event " + id,
		Start:      at.Add(24 * time.Hour),
		End:        at.Add(26 * time.Hour),
		Hash:       "hash-" + id,
		Type:       application.EventTypeQuick,
		ProposerID: proposerID,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func applicationRsvp(id, eventID, attendeeID string, at time.Time) application.Rsvp {
	return application.Rsvp{ID: id, EventID: eventID, AttendeeID: attendeeID, CreatedAt: at, UpdatedAt: at}
}
