package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/eventrsvp/internal/application"
	"github.com/example/eventrsvp/internal/persistence"
)

var (
	userCounter       uint64
	eventCounter      uint64
	rsvpCounter       uint64
	collectionCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests. Empty Email or WalletAddress values
// are stored as NULL.
type UserFixture struct {
	ID            string
	Email         string
	WalletAddress string
	Nickname      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:        id,
		Email:     fmt.Sprintf("%s@example.com", id),
		Nickname:  fmt.Sprintf("User %03d", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address. An empty value leaves
// the user without an email.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserWallet sets the wallet address.
func WithUserWallet(wallet string) UserOption {
	return func(f *UserFixture) {
		f.WalletAddress = wallet
	}
}

// WithUserNickname overrides the generated nickname.
func WithUserNickname(nickname string) UserOption {
	return func(f *UserFixture) {
		f.Nickname = nickname
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:            f.ID,
		Email:         f.Email,
		WalletAddress: f.WalletAddress,
		Nickname:      f.Nickname,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:            f.ID,
		Email:         optional(f.Email),
		WalletAddress: optional(f.WalletAddress),
		Nickname:      f.Nickname,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Input returns the fixture as an application.UserInput.
func (f UserFixture) Input() application.UserInput {
	return application.UserInput{
		Email:         f.Email,
		WalletAddress: f.WalletAddress,
		Nickname:      f.Nickname,
	}
}

// ----------------------------- Event fixtures -----------------------------

// EventFixture represents a deterministic event proposal.
type EventFixture struct {
	ID            string
	Title         string
	Description   string
	Location      string
	Start         time.Time
	End           time.Time
	Hash          string
	IsDeleted     bool
	GCalRequested bool
	GCalEventID   string
	GCalID        string
	Type          application.EventType
	ProposerID    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a deterministic event fixture. Events start one day
// after their creation and last two hours.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	id := fmt.Sprintf("event-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	start := created.Add(24 * time.Hour)
	fixture := EventFixture{
		ID:        id,
		Title:     fmt.Sprintf("Event %03d", idx),
		Location:  "Rooftop",
		Start:     start,
		End:       start.Add(2 * time.Hour),
		Hash:      fmt.Sprintf("hash%03d", idx),
		Type:      application.EventTypeQuick,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventProposer sets the proposing user.
func WithEventProposer(userID string) EventOption {
	return func(f *EventFixture) {
		f.ProposerID = userID
	}
}

// WithEventHash overrides the generated RSVP hash.
func WithEventHash(hash string) EventOption {
	return func(f *EventFixture) {
		f.Hash = hash
	}
}

// WithEventWindow sets the start and end instants.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventDeleted marks the event as deleted.
func WithEventDeleted() EventOption {
	return func(f *EventFixture) {
		f.IsDeleted = true
	}
}

// WithEventRemote links the event to a remote calendar event.
func WithEventRemote(calendarID, remoteEventID string) EventOption {
	return func(f *EventFixture) {
		f.GCalRequested = true
		f.GCalID = calendarID
		f.GCalEventID = remoteEventID
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		Location:      f.Location,
		Start:         f.Start,
		End:           f.End,
		Hash:          f.Hash,
		IsDeleted:     f.IsDeleted,
		GCalRequested: f.GCalRequested,
		GCalEventID:   f.GCalEventID,
		GCalID:        f.GCalID,
		Type:          f.Type,
		ProposerID:    f.ProposerID,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:            f.ID,
		Title:         f.Title,
		Description:   f.Description,
		Location:      f.Location,
		Start:         f.Start,
		End:           f.End,
		Hash:          f.Hash,
		IsDeleted:     f.IsDeleted,
		GCalRequested: f.GCalRequested,
		GCalEventID:   optional(f.GCalEventID),
		GCalID:        optional(f.GCalID),
		Type:          string(f.Type),
		ProposerID:    f.ProposerID,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Input returns the editable fields as an application.EventInput.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:       f.Title,
		Description: f.Description,
		Location:    f.Location,
		Start:       f.Start,
		End:         f.End,
		Type:        f.Type,
	}
}

// ----------------------------- RSVP fixtures -----------------------------

// RsvpFixture represents a deterministic RSVP.
type RsvpFixture struct {
	ID                      string
	EventID                 string
	AttendeeID              string
	IsAddedToGoogleCalendar bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// RsvpOption configures the generated RSVP fixture.
type RsvpOption func(*RsvpFixture)

// NewRsvpFixture returns an RSVP of attendeeID to eventID.
func NewRsvpFixture(eventID, attendeeID string, opts ...RsvpOption) RsvpFixture {
	idx := atomic.AddUint64(&rsvpCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RsvpFixture{
		ID:         fmt.Sprintf("rsvp-%03d", idx),
		EventID:    eventID,
		AttendeeID: attendeeID,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRsvpAddedToCalendar sets the calendar flag.
func WithRsvpAddedToCalendar(added bool) RsvpOption {
	return func(f *RsvpFixture) {
		f.IsAddedToGoogleCalendar = added
	}
}

// Application returns the fixture as an application.Rsvp value.
func (f RsvpFixture) Application() application.Rsvp {
	return application.Rsvp{
		ID:                      f.ID,
		EventID:                 f.EventID,
		AttendeeID:              f.AttendeeID,
		IsAddedToGoogleCalendar: f.IsAddedToGoogleCalendar,
		CreatedAt:               f.CreatedAt,
		UpdatedAt:               f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Rsvp value.
func (f RsvpFixture) Persistence() persistence.Rsvp {
	return persistence.Rsvp{
		ID:                      f.ID,
		EventID:                 f.EventID,
		AttendeeID:              f.AttendeeID,
		IsAddedToGoogleCalendar: f.IsAddedToGoogleCalendar,
		CreatedAt:               f.CreatedAt,
		UpdatedAt:               f.UpdatedAt,
	}
}

// -------------------------- Collection fixtures --------------------------

// CollectionFixture represents a deterministic event collection.
type CollectionFixture struct {
	ID        string
	Name      string
	Slug      string
	OwnerID   string
	EventIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CollectionOption configures the generated collection fixture.
type CollectionOption func(*CollectionFixture)

// NewCollectionFixture returns a collection owned by ownerID.
func NewCollectionFixture(ownerID string, opts ...CollectionOption) CollectionFixture {
	idx := atomic.AddUint64(&collectionCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := CollectionFixture{
		ID:        fmt.Sprintf("collection-%03d", idx),
		Name:      fmt.Sprintf("Collection %03d", idx),
		Slug:      fmt.Sprintf("collection-%03d", idx),
		OwnerID:   ownerID,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCollectionEvents sets the member events.
func WithCollectionEvents(eventIDs ...string) CollectionOption {
	return func(f *CollectionFixture) {
		f.EventIDs = append([]string(nil), eventIDs...)
	}
}

// WithCollectionSlug overrides the generated slug.
func WithCollectionSlug(slug string) CollectionOption {
	return func(f *CollectionFixture) {
		f.Slug = slug
	}
}

// Application returns the fixture as an application.Collection value.
func (f CollectionFixture) Application() application.Collection {
	return application.Collection{
		ID:        f.ID,
		Name:      f.Name,
		Slug:      f.Slug,
		OwnerID:   f.OwnerID,
		EventIDs:  append([]string(nil), f.EventIDs...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Collection value.
func (f CollectionFixture) Persistence() persistence.Collection {
	return persistence.Collection{
		ID:        f.ID,
		Name:      f.Name,
		Slug:      f.Slug,
		OwnerID:   f.OwnerID,
		EventIDs:  append([]string(nil), f.EventIDs...),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
