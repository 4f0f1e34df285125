package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByWallet(ctx context.Context, wallet string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// EventFilter narrows event queries. Zero values mean "no restriction".
type EventFilter struct {
	IDs            []string
	ProposerID     string
	CollectionID   string
	IncludeDeleted bool
}

// EventRepository stores events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	// UpdateEvent rewrites the editable columns. It never changes the stored
	// remote event id and never clears the deleted flag.
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	GetEventByHash(ctx context.Context, hash string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	// MarkEventsDeleted flags the given events as deleted and returns them.
	MarkEventsDeleted(ctx context.Context, ids []string, at time.Time) ([]Event, error)
	// LinkRemoteEvent stores the remote ids of an event that has none yet.
	LinkRemoteEvent(ctx context.Context, id, calendarID, remoteEventID string, at time.Time) error
}

// RsvpRepository stores RSVPs.
type RsvpRepository interface {
	CreateRsvp(ctx context.Context, rsvp Rsvp) error
	GetRsvp(ctx context.Context, eventID, attendeeID string) (Rsvp, error)
	ListRsvpsForEvent(ctx context.Context, eventID string) ([]Rsvp, error)
	MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error
	DeleteRsvp(ctx context.Context, eventID, attendeeID string) error
}

// CollectionRepository stores collections and their event membership.
type CollectionRepository interface {
	CreateCollection(ctx context.Context, collection Collection) error
	GetCollection(ctx context.Context, id string) (Collection, error)
	ListCollectionsByOwner(ctx context.Context, ownerID string) ([]Collection, error)
	AddEventsToCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error
	RemoveEventsFromCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error
}

// CredentialRepository stores provider credentials keyed by owner.
type CredentialRepository interface {
	UpsertGoogleCredential(ctx context.Context, credential GoogleCredential) error
	GetGoogleCredential(ctx context.Context, ownerID string) (GoogleCredential, error)
	UpsertSlackCredential(ctx context.Context, credential SlackCredential) error
	GetSlackCredential(ctx context.Context, ownerID string) (SlackCredential, error)
}
