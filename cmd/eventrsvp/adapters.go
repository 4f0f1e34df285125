package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/eventrsvp/internal/application"
	"github.com/example/eventrsvp/internal/persistence"
)

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByWallet(ctx context.Context, wallet string) (application.User, error) {
	stored, err := a.repo.GetUserByWallet(ctx, wallet)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, err
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, err
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) GetEventByHash(ctx context.Context, hash string) (application.Event, error) {
	stored, err := a.repo.GetEventByHash(ctx, hash)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, filter application.EventFilter) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		IDs:            append([]string(nil), filter.IDs...),
		ProposerID:     filter.ProposerID,
		CollectionID:   filter.CollectionID,
		IncludeDeleted: filter.IncludeDeleted,
	})
	if err != nil {
		return nil, err
	}
	return toApplicationEvents(models), nil
}

func (a *eventRepositoryAdapter) MarkEventsDeleted(ctx context.Context, ids []string, at time.Time) ([]application.Event, error) {
	models, err := a.repo.MarkEventsDeleted(ctx, ids, at)
	if err != nil {
		return nil, err
	}
	return toApplicationEvents(models), nil
}

func (a *eventRepositoryAdapter) LinkRemoteEvent(ctx context.Context, id, calendarID, remoteEventID string, at time.Time) error {
	return a.repo.LinkRemoteEvent(ctx, id, calendarID, remoteEventID, at)
}

type rsvpRepositoryAdapter struct {
	repo persistence.RsvpRepository
}

func newRsvpRepositoryAdapter(repo persistence.RsvpRepository) *rsvpRepositoryAdapter {
	return &rsvpRepositoryAdapter{repo: repo}
}

func (a *rsvpRepositoryAdapter) CreateRsvp(ctx context.Context, rsvp application.Rsvp) (application.Rsvp, error) {
	if err := a.repo.CreateRsvp(ctx, toPersistenceRsvp(rsvp)); err != nil {
		return application.Rsvp{}, err
	}
	return a.GetRsvp(ctx, rsvp.EventID, rsvp.AttendeeID)
}

func (a *rsvpRepositoryAdapter) GetRsvp(ctx context.Context, eventID, attendeeID string) (application.Rsvp, error) {
	stored, err := a.repo.GetRsvp(ctx, eventID, attendeeID)
	if err != nil {
		return application.Rsvp{}, err
	}
	return toApplicationRsvp(stored), nil
}

func (a *rsvpRepositoryAdapter) ListRsvpsForEvent(ctx context.Context, eventID string) ([]application.Rsvp, error) {
	models, err := a.repo.ListRsvpsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	rsvps := make([]application.Rsvp, 0, len(models))
	for _, model := range models {
		rsvps = append(rsvps, toApplicationRsvp(model))
	}
	return rsvps, nil
}

func (a *rsvpRepositoryAdapter) MarkAddedToCalendar(ctx context.Context, eventID, attendeeID string, at time.Time) error {
	return a.repo.MarkAddedToCalendar(ctx, eventID, attendeeID, at)
}

func (a *rsvpRepositoryAdapter) DeleteRsvp(ctx context.Context, eventID, attendeeID string) error {
	return a.repo.DeleteRsvp(ctx, eventID, attendeeID)
}

type collectionRepositoryAdapter struct {
	repo persistence.CollectionRepository
}

func newCollectionRepositoryAdapter(repo persistence.CollectionRepository) *collectionRepositoryAdapter {
	return &collectionRepositoryAdapter{repo: repo}
}

func (a *collectionRepositoryAdapter) CreateCollection(ctx context.Context, collection application.Collection) (application.Collection, error) {
	if err := a.repo.CreateCollection(ctx, persistence.Collection(collection)); err != nil {
		return application.Collection{}, err
	}
	return a.GetCollection(ctx, collection.ID)
}

func (a *collectionRepositoryAdapter) GetCollection(ctx context.Context, id string) (application.Collection, error) {
	stored, err := a.repo.GetCollection(ctx, id)
	if err != nil {
		return application.Collection{}, err
	}
	return application.Collection(stored), nil
}

func (a *collectionRepositoryAdapter) ListCollectionsByOwner(ctx context.Context, ownerID string) ([]application.Collection, error) {
	models, err := a.repo.ListCollectionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	collections := make([]application.Collection, 0, len(models))
	for _, model := range models {
		collections = append(collections, application.Collection(model))
	}
	return collections, nil
}

func (a *collectionRepositoryAdapter) AddEventsToCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error {
	return a.repo.AddEventsToCollection(ctx, collectionID, eventIDs, at)
}

func (a *collectionRepositoryAdapter) RemoveEventsFromCollection(ctx context.Context, collectionID string, eventIDs []string, at time.Time) error {
	return a.repo.RemoveEventsFromCollection(ctx, collectionID, eventIDs, at)
}

// credentialTokenStore backs the calendar token source with the stored
// Google credential of one owner.
type credentialTokenStore struct {
	repo  persistence.CredentialRepository
	owner string
	now   func() time.Time
}

func newCredentialTokenStore(repo persistence.CredentialRepository, owner string, now func() time.Time) *credentialTokenStore {
	if now == nil {
		now = time.Now
	}
	return &credentialTokenStore{repo: repo, owner: owner, now: now}
}

func (s *credentialTokenStore) LoadToken(ctx context.Context) (*oauth2.Token, error) {
	stored, err := s.repo.GetGoogleCredential(ctx, s.owner)
	if err != nil {
		return nil, err
	}
	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
	}
	if stored.Expiry != nil {
		token.Expiry = *stored.Expiry
	}
	return token, nil
}

// SaveToken keeps the stored calendar email and scope. A refresh response
// without a refresh token keeps the stored one.
func (s *credentialTokenStore) SaveToken(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return errors.New("token store: nil token")
	}

	credential := persistence.GoogleCredential{OwnerID: s.owner, CreatedAt: s.now()}
	existing, err := s.repo.GetGoogleCredential(ctx, s.owner)
	switch {
	case err == nil:
		credential = existing
	case !errors.Is(err, persistence.ErrNotFound):
		return err
	}

	credential.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		credential.RefreshToken = token.RefreshToken
	}
	credential.TokenType = token.TokenType
	credential.Expiry = nil
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		credential.Expiry = &expiry
	}
	if scope, ok := token.Extra("scope").(string); ok && scope != "" {
		credential.Scope = scope
	}
	credential.UpdatedAt = s.now()
	return s.repo.UpsertGoogleCredential(ctx, credential)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:            model.ID,
		Email:         derefString(model.Email),
		WalletAddress: derefString(model.WalletAddress),
		Nickname:      model.Nickname,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	return persistence.User{
		ID:            user.ID,
		Email:         optionalString(user.Email),
		WalletAddress: optionalString(user.WalletAddress),
		Nickname:      user.Nickname,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	event := application.Event{
		ID:            model.ID,
		Title:         model.Title,
		Description:   model.Description,
		Location:      model.Location,
		Start:         model.Start,
		End:           model.End,
		Hash:          model.Hash,
		IsDeleted:     model.IsDeleted,
		GCalRequested: model.GCalRequested,
		GCalEventID:   derefString(model.GCalEventID),
		GCalID:        derefString(model.GCalID),
		Type:          application.EventType(model.Type),
		ProposerID:    model.ProposerID,
		CreatedAt:     model.CreatedAt,
		UpdatedAt:     model.UpdatedAt,
	}
	if model.ProposerNickname != "" {
		event.Proposer = &application.User{ID: model.ProposerID, Nickname: model.ProposerNickname}
	}
	return event
}

func toApplicationEvents(models []persistence.Event) []application.Event {
	if len(models) == 0 {
		return nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:            event.ID,
		Title:         event.Title,
		Description:   event.Description,
		Location:      event.Location,
		Start:         event.Start,
		End:           event.End,
		Hash:          event.Hash,
		IsDeleted:     event.IsDeleted,
		GCalRequested: event.GCalRequested,
		GCalEventID:   optionalString(event.GCalEventID),
		GCalID:        optionalString(event.GCalID),
		Type:          string(event.Type),
		ProposerID:    event.ProposerID,
		CreatedAt:     event.CreatedAt,
		UpdatedAt:     event.UpdatedAt,
	}
}

func toApplicationRsvp(model persistence.Rsvp) application.Rsvp {
	return application.Rsvp{
		ID:         model.ID,
		EventID:    model.EventID,
		AttendeeID: model.AttendeeID,
		Attendee: &application.User{
			ID:       model.AttendeeID,
			Email:    derefString(model.AttendeeEmail),
			Nickname: model.AttendeeNickname,
		},
		IsAddedToGoogleCalendar: model.IsAddedToGoogleCalendar,
		CreatedAt:               model.CreatedAt,
		UpdatedAt:               model.UpdatedAt,
	}
}

func toPersistenceRsvp(rsvp application.Rsvp) persistence.Rsvp {
	return persistence.Rsvp{
		ID:                      rsvp.ID,
		EventID:                 rsvp.EventID,
		AttendeeID:              rsvp.AttendeeID,
		IsAddedToGoogleCalendar: rsvp.IsAddedToGoogleCalendar,
		CreatedAt:               rsvp.CreatedAt,
		UpdatedAt:               rsvp.UpdatedAt,
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
