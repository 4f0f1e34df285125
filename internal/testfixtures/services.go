package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/eventrsvp/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock         *Clock
	IDGenerator   *IDGenerator
	HashGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:         NewClock(time.Time{}),
		IDGenerator:   NewIDGenerator("id"),
		HashGenerator: NewHashGenerator("hash"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.HashGenerator == nil {
		factory.HashGenerator = NewHashGenerator("hash")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithHashGenerator overrides the RSVP hash generator used by the factory.
func WithHashGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.HashGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// EventServiceDeps captures dependencies for constructing an event service.
type EventServiceDeps struct {
	Events        application.EventRepository
	Rsvps         application.RsvpLister
	Calendar      application.CalendarAdapter
	Config        application.EventServiceConfig
	IDGenerator   func() string
	HashGenerator func() string
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewEventService builds an event service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewEventService(deps EventServiceDeps) *application.EventService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	hashGen := deps.HashGenerator
	if hashGen == nil {
		hashGen = f.HashGenerator.NextFunc()
	}
	return application.NewEventServiceWithLogger(
		deps.Events,
		deps.Rsvps,
		deps.Calendar,
		deps.Config,
		idGen,
		hashGen,
		now,
		deps.Logger,
	)
}

// RsvpServiceDeps captures dependencies for constructing an RSVP service.
type RsvpServiceDeps struct {
	Events      application.RsvpEventLookup
	Users       application.UserRepository
	Rsvps       application.RsvpRepository
	Inviter     application.Inviter
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRsvpService builds an RSVP service using the supplied dependencies.
func (f *ServiceFactory) NewRsvpService(deps RsvpServiceDeps) *application.RsvpService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewRsvpServiceWithLogger(
		deps.Events,
		deps.Users,
		deps.Rsvps,
		deps.Inviter,
		idGen,
		now,
		deps.Logger,
	)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewUserServiceWithLogger(
		deps.Users,
		idGen,
		now,
		deps.Logger,
	)
}

// CollectionServiceDeps captures dependencies for constructing a collection service.
type CollectionServiceDeps struct {
	Collections application.CollectionRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewCollectionService builds a collection service using the supplied dependencies.
func (f *ServiceFactory) NewCollectionService(deps CollectionServiceDeps) *application.CollectionService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewCollectionServiceWithLogger(
		deps.Collections,
		idGen,
		now,
		deps.Logger,
	)
}
