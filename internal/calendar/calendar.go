// Package calendar talks to the remote calendar provider and renders iCalendar exports.
package calendar

// Event is the provider-neutral payload exchanged with the calendar provider.
// Start and End are RFC 3339 timestamps.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       string
	End         string
	Attendees   []Attendee
	// SourceURL links the remote event back to its RSVP page.
	SourceURL string
	HTMLLink  string
}

// Attendee is a guest on a remote event.
type Attendee struct {
	Email          string
	DisplayName    string
	ResponseStatus string
	Optional       bool
}

// InviteTarget identifies one remote event an invitation is sent for.
type InviteTarget struct {
	CalendarID string
	EventID    string
	Title      string
	RSVPURL    string
}
