package persistence

import "time"

// User is anyone who proposes events or RSVPs to them.
type User struct {
	ID            string
	Email         *string
	WalletAddress *string
	Nickname      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Event is a proposed event. ProposerNickname is filled by reads only.
type Event struct {
	ID               string
	Title            string
	Description      string
	Location         string
	Start            time.Time
	End              time.Time
	Hash             string
	IsDeleted        bool
	GCalRequested    bool
	GCalEventID      *string
	GCalID           *string
	Type             string
	ProposerID       string
	ProposerNickname string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Rsvp links an attendee to an event. The attendee columns are filled by reads only.
type Rsvp struct {
	ID                      string
	EventID                 string
	AttendeeID              string
	AttendeeNickname        string
	AttendeeEmail           *string
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

// GoogleCredential stores OAuth token material for the calendar API.
type GoogleCredential struct {
	OwnerID       string
	AccessToken   string
	RefreshToken  string
	TokenType     string
	Expiry        *time.Time
	Scope         string
	CalendarEmail string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SlackCredential stores a bot token for a workspace channel.
type SlackCredential struct {
	OwnerID   string
	TeamID    string
	BotToken  string
	ChannelID string
	CreatedAt time.Time
	UpdatedAt time.Time
}
