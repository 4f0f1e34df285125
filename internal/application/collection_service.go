package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gosimple/slug"

	"github.com/example/eventrsvp/internal/persistence"
)

const maxCollectionNameLength = 100

// CollectionRepository captures the persistence operations needed by the collection service.
type CollectionRepository interface {
	CreateCollection(ctx context.Context, collection Collection) (Collection, error)
	GetCollection(ctx context.Context, id string) (Collection, error)
	ListCollectionsByOwner(ctx context.Context, ownerID string) ([]Collection, error)
	AddEventsToCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error
	RemoveEventsFromCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error
}

// CollectionService manages user curated groups of events.
type CollectionService struct {
	collections CollectionRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCollectionService constructs a collection service.
func NewCollectionService(collections CollectionRepository, idGenerator func() string, now func() time.Time) *CollectionService {
	return NewCollectionServiceWithLogger(collections, idGenerator, now, nil)
}

// NewCollectionServiceWithLogger constructs a collection service with a specified logger.
func NewCollectionServiceWithLogger(collections CollectionRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CollectionService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CollectionService{collections: collections, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *CollectionService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CollectionService", operation, attrs...)
}

// CreateCollection validates and persists a collection. The slug is derived from the name
// and must be unique per owner.
func (s *CollectionService) CreateCollection(ctx context.Context, params CreateCollectionParams) (collection Collection, err error) {
	if s == nil {
		err = fmt.Errorf("CollectionService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateCollection", "owner_id", params.OwnerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create collection", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("collection_id", collection.ID, "slug", collection.Slug).InfoContext(ctx, "collection created")
	}()

	name := strings.TrimSpace(params.Name)
	ownerID := strings.TrimSpace(params.OwnerID)
	collectionSlug := slug.Make(name)

	vErr := &ValidationError{}
	switch {
	case name == "":
		vErr.add("name", "name is required")
	case utf8.RuneCountInString(name) > maxCollectionNameLength:
		vErr.add("name", fmt.Sprintf("name must be at most %d characters", maxCollectionNameLength))
	case collectionSlug == "":
		vErr.add("name", "name must contain letters or digits")
	}
	if ownerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	collection = Collection{
		ID:        s.idGenerator(),
		Name:      name,
		Slug:      collectionSlug,
		OwnerID:   ownerID,
		EventIDs:  compactIDs(params.EventIDs),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if s.collections == nil {
		return
	}

	var persisted Collection
	persisted, err = s.collections.CreateCollection(ctx, collection)
	if err != nil {
		err = mapCollectionRepoError(err)
		collection = Collection{}
		return
	}
	collection = persisted
	return
}

// GetCollection returns a collection with its event ids.
func (s *CollectionService) GetCollection(ctx context.Context, id string) (Collection, error) {
	if s == nil {
		return Collection{}, fmt.Errorf("CollectionService is nil")
	}
	if s.collections == nil {
		return Collection{}, ErrNotFound
	}
	collection, err := s.collections.GetCollection(ctx, id)
	if err != nil {
		return Collection{}, mapRepoError(err)
	}
	return collection, nil
}

// ListCollections returns the collections owned by ownerID ordered by name.
func (s *CollectionService) ListCollections(ctx context.Context, ownerID string) ([]Collection, error) {
	if s == nil {
		return nil, fmt.Errorf("CollectionService is nil")
	}
	if strings.TrimSpace(ownerID) == "" {
		vErr := &ValidationError{}
		vErr.add("owner_id", "owner is required")
		return nil, vErr
	}
	if s.collections == nil {
		return nil, nil
	}
	collections, err := s.collections.ListCollectionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return collections, nil
}

// AddEvents adds events to a collection. Events already present are ignored.
func (s *CollectionService) AddEvents(ctx context.Context, params CollectionEventsParams) (Collection, error) {
	return s.changeEvents(ctx, "AddEvents", params, func(ctx context.Context, id string, eventIDs []string, at time.Time) error {
		return s.collections.AddEventsToCollection(ctx, id, eventIDs, at)
	})
}

// RemoveEvents removes events from a collection.
func (s *CollectionService) RemoveEvents(ctx context.Context, params CollectionEventsParams) (Collection, error) {
	return s.changeEvents(ctx, "RemoveEvents", params, func(ctx context.Context, id string, eventIDs []string, at time.Time) error {
		return s.collections.RemoveEventsFromCollection(ctx, id, eventIDs, at)
	})
}

func (s *CollectionService) changeEvents(ctx context.Context, operation string, params CollectionEventsParams, apply func(context.Context, string, []string, time.Time) error) (collection Collection, err error) {
	if s == nil {
		err = fmt.Errorf("CollectionService is nil")
		return
	}
	if s.collections == nil {
		err = fmt.Errorf("collection repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation, "collection_id", params.CollectionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to change collection events", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "collection events changed", "event_count", len(collection.EventIDs))
	}()

	ids := compactIDs(params.EventIDs)
	if len(ids) == 0 {
		vErr := &ValidationError{}
		vErr.add("event_ids", "at least one event id is required")
		err = vErr
		return
	}

	if err = apply(ctx, params.CollectionID, ids, s.now()); err != nil {
		err = mapCollectionRepoError(err)
		return
	}

	collection, err = s.collections.GetCollection(ctx, params.CollectionID)
	if err != nil {
		err = mapRepoError(err)
	}
	return
}

func mapCollectionRepoError(err error) error {
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("event_ids", "owner or events do not exist")
		return vErr
	}
	err = mapRepoError(err)
	if errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("%w: a collection with this name already exists", ErrAlreadyExists)
	}
	return err
}
