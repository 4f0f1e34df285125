package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RsvpRepository captures the persistence operations needed by the RSVP service.
type RsvpRepository interface {
	CreateRsvp(ctx context.Context, rsvp Rsvp) (Rsvp, error)
	GetRsvp(ctx context.Context, eventID, attendeeID string) (Rsvp, error)
	ListRsvpsForEvent(ctx context.Context, eventID string) ([]Rsvp, error)
	MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error
	DeleteRsvp(ctx context.Context, eventID, attendeeID string) error
}

// RsvpEventLookup resolves the event an RSVP targets.
type RsvpEventLookup interface {
	GetEventByHash(ctx context.Context, hash string) (Event, error)
}

// Inviter sends calendar invites for events.
type Inviter interface {
	SendInvites(ctx context.Context, params SendInvitesParams) error
}

// RsvpService records attendance and optionally invites the attendee to the calendar event.
type RsvpService struct {
	events      RsvpEventLookup
	users       UserRepository
	rsvps       RsvpRepository
	inviter     Inviter
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewRsvpService constructs an RSVP service. A nil inviter disables calendar invites.
func NewRsvpService(events RsvpEventLookup, users UserRepository, rsvps RsvpRepository, inviter Inviter, idGenerator func() string, now func() time.Time) *RsvpService {
	return NewRsvpServiceWithLogger(events, users, rsvps, inviter, idGenerator, now, nil)
}

// NewRsvpServiceWithLogger constructs an RSVP service with a specified logger.
func NewRsvpServiceWithLogger(events RsvpEventLookup, users UserRepository, rsvps RsvpRepository, inviter Inviter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *RsvpService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &RsvpService{
		events:      events,
		users:       users,
		rsvps:       rsvps,
		inviter:     inviter,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *RsvpService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RsvpService", operation, attrs...)
}

// CreateRsvp records that the attendee identified by email or wallet address
// will attend the event with params.Hash. Unknown attendees are created on the
// fly. A failed calendar invite is logged and the RSVP is kept.
func (s *RsvpService) CreateRsvp(ctx context.Context, params CreateRsvpParams) (rsvp Rsvp, err error) {
	if s == nil {
		err = fmt.Errorf("RsvpService is nil")
		return
	}
	if s.events == nil || s.users == nil || s.rsvps == nil {
		err = fmt.Errorf("rsvp repositories not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRsvp",
		"hash", params.Hash,
		"add_to_calendar", params.AddToCalendar,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create rsvp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("rsvp_id", rsvp.ID, "attendee_id", rsvp.AttendeeID).InfoContext(ctx, "rsvp created")
	}()

	hash := strings.TrimSpace(params.Hash)
	identity := normalizeUserInput(UserInput{
		Email:         params.Email,
		WalletAddress: params.WalletAddress,
		Nickname:      params.Nickname,
	})

	vErr := &ValidationError{}
	if hash == "" {
		vErr.add("hash", "event hash is required")
	}
	vErr.merge(validateUserInput(identity))
	if params.AddToCalendar && identity.Email == "" {
		vErr.add("email", "email is required to add the event to a calendar")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var event Event
	event, err = s.events.GetEventByHash(ctx, hash)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	if event.IsDeleted {
		err = ErrEventDeleted
		return
	}

	var attendee User
	attendee, err = s.findOrCreateAttendee(ctx, identity)
	if err != nil {
		return
	}

	now := s.now()
	rsvp = Rsvp{
		ID:         s.idGenerator(),
		EventID:    event.ID,
		AttendeeID: attendee.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var persisted Rsvp
	persisted, err = s.rsvps.CreateRsvp(ctx, rsvp)
	if err != nil {
		err = mapRepoError(err)
		if errors.Is(err, ErrAlreadyExists) {
			err = fmt.Errorf("%w: attendee already responded to this event", ErrAlreadyExists)
		}
		rsvp = Rsvp{}
		return
	}
	rsvp = persisted
	rsvp.Attendee = &attendee

	if params.AddToCalendar {
		rsvp = s.invite(ctx, logger, rsvp, identity.Email)
	}
	return
}

func (s *RsvpService) invite(ctx context.Context, logger *slog.Logger, rsvp Rsvp, email string) Rsvp {
	if s.inviter == nil {
		logger.WarnContext(ctx, "calendar invites not configured", "event_id", rsvp.EventID)
		return rsvp
	}

	if err := s.inviter.SendInvites(ctx, SendInvitesParams{EventIDs: []string{rsvp.EventID}, Email: email}); err != nil {
		logger.WarnContext(ctx, "failed to send calendar invite, rsvp kept",
			"event_id", rsvp.EventID,
			"error", err,
			"error_kind", ErrorKind(err),
		)
		return rsvp
	}

	refreshed, err := s.rsvps.GetRsvp(ctx, rsvp.EventID, rsvp.AttendeeID)
	if err != nil {
		logger.WarnContext(ctx, "failed to reload rsvp after invite", "error", err)
		return rsvp
	}
	refreshed.Attendee = rsvp.Attendee
	return refreshed
}

// findOrCreateAttendee resolves the attendee by email first, then by wallet
// address, and creates a new user when neither matches.
func (s *RsvpService) findOrCreateAttendee(ctx context.Context, identity UserInput) (User, error) {
	if identity.Email != "" {
		user, err := s.users.GetUserByEmail(ctx, identity.Email)
		if err == nil {
			return user, nil
		}
		if err = mapRepoError(err); !errors.Is(err, ErrNotFound) {
			return User{}, err
		}
	}
	if identity.WalletAddress != "" {
		user, err := s.users.GetUserByWallet(ctx, identity.WalletAddress)
		if err == nil {
			return user, nil
		}
		if err = mapRepoError(err); !errors.Is(err, ErrNotFound) {
			return User{}, err
		}
	}

	now := s.now()
	user := User{
		ID:            s.idGenerator(),
		Email:         identity.Email,
		WalletAddress: identity.WalletAddress,
		Nickname:      identity.Nickname,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return created, nil
}

// ListRsvps returns the RSVPs of the event with hash in response order.
func (s *RsvpService) ListRsvps(ctx context.Context, hash string) ([]Rsvp, error) {
	if s == nil {
		return nil, fmt.Errorf("RsvpService is nil")
	}
	if s.events == nil || s.rsvps == nil {
		return nil, fmt.Errorf("rsvp repositories not configured")
	}

	event, err := s.events.GetEventByHash(ctx, strings.TrimSpace(hash))
	if err != nil {
		return nil, mapRepoError(err)
	}
	rsvps, err := s.rsvps.ListRsvpsForEvent(ctx, event.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rsvps, nil
}

// CancelRsvp removes the RSVP of attendeeID for the event with hash.
func (s *RsvpService) CancelRsvp(ctx context.Context, hash, attendeeID string) (err error) {
	if s == nil {
		return fmt.Errorf("RsvpService is nil")
	}
	if s.events == nil || s.rsvps == nil {
		return fmt.Errorf("rsvp repositories not configured")
	}

	hash = strings.TrimSpace(hash)
	attendeeID = strings.TrimSpace(attendeeID)
	logger := s.loggerWith(ctx, "CancelRsvp", "event_hash", hash, "attendee_id", attendeeID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to cancel rsvp", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "rsvp cancelled")
	}()

	if attendeeID == "" {
		vErr := &ValidationError{}
		vErr.add("attendee_id", "attendee id is required")
		err = vErr
		return
	}

	event, lookupErr := s.events.GetEventByHash(ctx, hash)
	if lookupErr != nil {
		err = mapRepoError(lookupErr)
		return
	}
	if event.IsDeleted {
		err = fmt.Errorf("event %s: %w", event.ID, ErrEventDeleted)
		return
	}

	if err = s.rsvps.DeleteRsvp(ctx, event.ID, attendeeID); err != nil {
		err = mapRepoError(err)
	}
	return
}
