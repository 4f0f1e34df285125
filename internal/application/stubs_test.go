package application

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/eventrsvp/internal/calendar"
	"github.com/example/eventrsvp/internal/persistence"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

type inviteCall struct {
	Targets []calendar.InviteTarget
	Email   string
}

type calendarStub struct {
	mu sync.Mutex

	remote    map[string]calendar.Event
	getErr    error
	getCalls  []string
	updates   map[string]calendar.Event
	updateErr map[string]error
	createErr error
	created   []calendar.Event
	invites   []inviteCall
	inviteErr error
}

func newCalendarStub() *calendarStub {
	return &calendarStub{
		remote:    make(map[string]calendar.Event),
		updates:   make(map[string]calendar.Event),
		updateErr: make(map[string]error),
	}
}

func (c *calendarStub) CreateEvent(ctx context.Context, calendarID string, payload calendar.Event) (calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return calendar.Event{}, c.createErr
	}
	payload.ID = "remote-created"
	c.created = append(c.created, payload)
	return payload, nil
}

func (c *calendarStub) UpdateEvent(ctx context.Context, calendarID, eventID string, payload calendar.Event) (calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.updateErr[eventID]; err != nil {
		return calendar.Event{}, err
	}
	payload.ID = eventID
	c.updates[eventID] = payload
	return payload, nil
}

func (c *calendarStub) GetEvent(ctx context.Context, calendarID, eventID string) (calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls = append(c.getCalls, eventID)
	if c.getErr != nil {
		return calendar.Event{}, c.getErr
	}
	return c.remote[eventID], nil
}

func (c *calendarStub) SendInvite(ctx context.Context, targets []calendar.InviteTarget, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invites = append(c.invites, inviteCall{Targets: targets, Email: email})
	return c.inviteErr
}

func (c *calendarStub) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.getCalls) + len(c.updates) + len(c.created) + len(c.invites)
}

type eventRepoStub struct {
	mu      sync.Mutex
	events  map[string]Event
	links   map[string][2]string
	listErr error
}

func newEventRepoStub(events ...Event) *eventRepoStub {
	repo := &eventRepoStub{events: make(map[string]Event), links: make(map[string][2]string)}
	for _, event := range events {
		repo.events[event.ID] = event
	}
	return repo
}

func (r *eventRepoStub) CreateEvent(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.events {
		if existing.Hash == event.Hash {
			return Event{}, persistence.ErrDuplicate
		}
	}
	if event.ProposerID == "ghost" {
		return Event{}, persistence.ErrForeignKeyViolation
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepoStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.events[event.ID]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	event.GCalEventID = existing.GCalEventID
	event.GCalID = existing.GCalID
	r.events[event.ID] = event
	return event, nil
}

func (r *eventRepoStub) GetEvent(ctx context.Context, id string) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return Event{}, persistence.ErrNotFound
	}
	return event, nil
}

func (r *eventRepoStub) GetEventByHash(ctx context.Context, hash string) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, event := range r.events {
		if event.Hash == hash {
			return event, nil
		}
	}
	return Event{}, persistence.ErrNotFound
}

func (r *eventRepoStub) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	wanted := make(map[string]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []Event
	for _, event := range r.events {
		if len(wanted) > 0 && !wanted[event.ID] {
			continue
		}
		if event.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.ProposerID != "" && event.ProposerID != filter.ProposerID {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *eventRepoStub) MarkEventsDeleted(ctx context.Context, ids []string, at time.Time) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if _, ok := r.events[id]; !ok {
			return nil, persistence.ErrNotFound
		}
	}
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		event := r.events[id]
		event.IsDeleted = true
		event.UpdatedAt = at
		r.events[id] = event
		out = append(out, event)
	}
	return out, nil
}

func (r *eventRepoStub) LinkRemoteEvent(ctx context.Context, id, calendarID, remoteEventID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[id]
	if !ok {
		return persistence.ErrNotFound
	}
	event.GCalID = calendarID
	event.GCalEventID = remoteEventID
	r.events[id] = event
	r.links[id] = [2]string{calendarID, remoteEventID}
	return nil
}

type userRepoStub struct {
	mu        sync.Mutex
	users     map[string]User
	createErr error
	// emailResults, when set, is consumed one entry per GetUserByEmail call.
	emailResults []error
	emailCalls   int
}

func newUserRepoStub(users ...User) *userRepoStub {
	repo := &userRepoStub{users: make(map[string]User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *userRepoStub) CreateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return User{}, r.createErr
	}
	for _, existing := range r.users {
		if (user.Email != "" && existing.Email == user.Email) || (user.WalletAddress != "" && existing.WalletAddress == user.WalletAddress) {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *userRepoStub) GetUser(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (r *userRepoStub) GetUserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := r.emailCalls
	r.emailCalls++
	if call < len(r.emailResults) && r.emailResults[call] != nil {
		return User{}, r.emailResults[call]
	}
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

func (r *userRepoStub) GetUserByWallet(ctx context.Context, wallet string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.WalletAddress == wallet {
			return user, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

func (r *userRepoStub) UpdateUser(ctx context.Context, user User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return User{}, persistence.ErrNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && user.Email != "" && existing.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *userRepoStub) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepoStub) ListUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, user := range r.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type markCall struct {
	EventID    string
	AttendeeID string
}

type rsvpRepoStub struct {
	mu      sync.Mutex
	rsvps   map[[2]string]Rsvp
	markErr map[string]error
	marks   []markCall
}

func newRsvpRepoStub(rsvps ...Rsvp) *rsvpRepoStub {
	repo := &rsvpRepoStub{rsvps: make(map[[2]string]Rsvp), markErr: make(map[string]error)}
	for _, rsvp := range rsvps {
		repo.rsvps[[2]string{rsvp.EventID, rsvp.AttendeeID}] = rsvp
	}
	return repo
}

func (r *rsvpRepoStub) CreateRsvp(ctx context.Context, rsvp Rsvp) (Rsvp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{rsvp.EventID, rsvp.AttendeeID}
	if _, ok := r.rsvps[key]; ok {
		return Rsvp{}, persistence.ErrDuplicate
	}
	r.rsvps[key] = rsvp
	return rsvp, nil
}

func (r *rsvpRepoStub) GetRsvp(ctx context.Context, eventID, attendeeID string) (Rsvp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rsvp, ok := r.rsvps[[2]string{eventID, attendeeID}]
	if !ok {
		return Rsvp{}, persistence.ErrNotFound
	}
	return rsvp, nil
}

func (r *rsvpRepoStub) ListRsvpsForEvent(ctx context.Context, eventID string) ([]Rsvp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Rsvp
	for key, rsvp := range r.rsvps {
		if key[0] == eventID {
			out = append(out, rsvp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *rsvpRepoStub) MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marks = append(r.marks, markCall{EventID: eventID, AttendeeID: attendeeID})
	if err := r.markErr[eventID]; err != nil {
		return err
	}
	key := [2]string{eventID, attendeeID}
	rsvp, ok := r.rsvps[key]
	if !ok {
		return persistence.ErrNotFound
	}
	rsvp.IsAddedToGoogleCalendar = true
	rsvp.UpdatedAt = at
	r.rsvps[key] = rsvp
	return nil
}

func (r *rsvpRepoStub) DeleteRsvp(ctx context.Context, eventID, attendeeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{eventID, attendeeID}
	if _, ok := r.rsvps[key]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rsvps, key)
	return nil
}
