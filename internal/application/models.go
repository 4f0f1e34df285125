package application

import "time"

// DefaultNickname is assigned to users who do not pick one.
const DefaultNickname = "Anonymous"

// EventType distinguishes ad-hoc proposals from planned events.
type EventType string

const (
	// EventTypeQuick is an ad-hoc proposal.
	EventTypeQuick EventType = "QUICK"
	// EventTypeScheduled is a planned event.
	EventTypeScheduled EventType = "SCHEDULED"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t == EventTypeQuick || t == EventTypeScheduled
}

// User represents a proposer or attendee. Email and WalletAddress are optional
// and empty when absent.
type User struct {
	ID            string
	Email         string
	WalletAddress string
	Nickname      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event represents a proposed event and its calendar linkage.
type Event struct {
	ID            string
	Title         string
	Description   string
	Location      string
	Start         time.Time
	End           time.Time
	Hash          string
	IsDeleted     bool
	GCalRequested bool
	// GCalEventID is the remote event id. Once set it never changes.
	GCalEventID string
	// GCalID is the remote calendar holding GCalEventID.
	GCalID     string
	Type       EventType
	ProposerID string
	// Proposer is populated when the repository loads it.
	Proposer  *User
	Rsvps     []Rsvp
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rsvp links an attendee to an event.
type Rsvp struct {
	ID                      string
	EventID                 string
	AttendeeID              string
	Attendee                *User
	IsAddedToGoogleCalendar bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Collection groups events under an owner.
type Collection struct {
	ID        string
	Name      string
	Slug      string
	OwnerID   string
	EventIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncedEvent pairs a remote event id with the local event it came from.
type SyncedEvent struct {
	RemoteEventID string
	EventID       string
}

// EventFilter narrows event listings. Zero values do not filter.
type EventFilter struct {
	IDs            []string
	ProposerID     string
	CollectionID   string
	IncludeDeleted bool
}

// EventInput captures caller provided event fields.
type EventInput struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Type        EventType
}

// CreateEventParams wraps the data required to propose an event.
type CreateEventParams struct {
	ProposerID    string
	Input         EventInput
	GCalRequested bool
}

// EventUpdate pairs an event id with its new field values.
type EventUpdate struct {
	EventID string
	Input   EventInput
}

// UpdateEventsParams wraps a batch of event updates. Host overrides the
// configured deployment host when building RSVP links.
type UpdateEventsParams struct {
	Updates []EventUpdate
	Host    string
}

// DeleteEventsParams wraps a batch of event deletions.
type DeleteEventsParams struct {
	EventIDs []string
	Host     string
}

// EventBatchResult reports the persisted events and their calendar pairings.
type EventBatchResult struct {
	Events []Event
	Synced []SyncedEvent
}

// SyncEventsParams is the input of EventSynchronizer.SyncEvents.
type SyncEventsParams struct {
	Updated []Event
	Deleted []Event
	Host    string
}

// SendInvitesParams is the input of InviteNotifier.SendInvites.
type SendInvitesParams struct {
	EventIDs []string
	Email    string
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email         string
	WalletAddress string
	Nickname      string
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	UserID string
	Input  UserInput
}

// CreateRsvpParams wraps the data required to RSVP to an event.
type CreateRsvpParams struct {
	Hash          string
	Email         string
	WalletAddress string
	Nickname      string
	AddToCalendar bool
}

// CreateCollectionParams wraps the data required to create a collection.
type CreateCollectionParams struct {
	OwnerID  string
	Name     string
	EventIDs []string
}

// CollectionEventsParams names events to add to or remove from a collection.
type CollectionEventsParams struct {
	CollectionID string
	EventIDs     []string
}
