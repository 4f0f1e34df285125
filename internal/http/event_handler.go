package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/eventrsvp/internal/application"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvents(ctx context.Context, params application.UpdateEventsParams) (application.EventBatchResult, error)
	DeleteEvents(ctx context.Context, params application.DeleteEventsParams) (application.EventBatchResult, error)
	GetEventByHash(ctx context.Context, hash string) (application.Event, error)
	ListEvents(ctx context.Context, filter application.EventFilter) ([]application.Event, error)
	WriteICS(ctx context.Context, w io.Writer, hash string) error
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "proposer_id", req.ProposerID)

	input, vErr := req.eventRequest.toInput("")
	if vErr != nil {
		logger.ErrorContext(r.Context(), "event request has malformed times", "error", vErr, "error_kind", "validation")
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		ProposerID:    strings.TrimSpace(req.ProposerID),
		Input:         input,
		GCalRequested: req.GCalRequested,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	filter := application.EventFilter{
		ProposerID:   strings.TrimSpace(query.Get("proposer_id")),
		CollectionID: strings.TrimSpace(query.Get("collection_id")),
	}
	if raw := strings.TrimSpace(query.Get("include_deleted")); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, fieldError("include_deleted", "must be a boolean"))
			return
		}
		filter.IncludeDeleted = include
	}

	logger := h.log(r.Context(), "List", "proposer_id", filter.ProposerID, "collection_id", filter.CollectionID)
	events, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(events)).InfoContext(r.Context(), "events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	hash, ok := EventHashFromContext(r.Context())
	if !ok || strings.TrimSpace(hash) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventHash)
		return
	}

	logger := h.log(r.Context(), "Get", "event_hash", hash)
	event, err := h.service.GetEventByHash(r.Context(), hash)
	if err != nil {
		logger.ErrorContext(r.Context(), "event lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) ICS(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	hash, ok := EventHashFromContext(r.Context())
	if !ok || strings.TrimSpace(hash) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventHash)
		return
	}

	logger := h.log(r.Context(), "ICS", "event_hash", hash)
	var buf bytes.Buffer
	if err := h.service.WriteICS(r.Context(), &buf, hash); err != nil {
		logger.ErrorContext(r.Context(), "ics export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+hash+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.ErrorContext(r.Context(), "failed to write ics response", "error", err)
	}
}

func (h *EventHandler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req updateEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateBatch", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event updates", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateBatch", "event_count", len(req.Events))

	params := application.UpdateEventsParams{Host: r.Host, Updates: make([]application.EventUpdate, 0, len(req.Events))}
	combined := &application.ValidationError{FieldErrors: make(map[string]string)}
	for i, item := range req.Events {
		input, vErr := item.toInput("events[" + strconv.Itoa(i) + "].")
		if vErr != nil {
			for field, msg := range vErr.FieldErrors {
				combined.FieldErrors[field] = msg
			}
			continue
		}
		params.Updates = append(params.Updates, application.EventUpdate{EventID: strings.TrimSpace(item.ID), Input: input})
	}
	if combined.HasErrors() {
		logger.ErrorContext(r.Context(), "event updates have malformed times", "error", combined, "error_kind", "validation")
		h.responder.handleServiceError(r.Context(), w, combined)
		return
	}

	result, err := h.service.UpdateEvents(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("synced_count", len(result.Synced)).InfoContext(r.Context(), "events updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchResponse(result))
}

func (h *EventHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req eventIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "DeleteBatch", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode event deletions", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "DeleteBatch", "event_count", len(req.EventIDs))
	result, err := h.service.DeleteEvents(r.Context(), application.DeleteEventsParams{EventIDs: req.EventIDs, Host: r.Host})
	if err != nil {
		logger.ErrorContext(r.Context(), "event delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("synced_count", len(result.Synced)).InfoContext(r.Context(), "events deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatchResponse(result))
}

type eventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Type        string `json:"type"`
}

// toInput parses the RFC 3339 timestamps. Blank timestamps are left zero so
// the service reports them as required.
func (r eventRequest) toInput(prefix string) (application.EventInput, *application.ValidationError) {
	input := application.EventInput{
		Title:       strings.TrimSpace(r.Title),
		Description: strings.TrimSpace(r.Description),
		Location:    strings.TrimSpace(r.Location),
		Type:        application.EventType(strings.TrimSpace(r.Type)),
	}

	vErr := &application.ValidationError{FieldErrors: make(map[string]string)}
	var err error
	if raw := strings.TrimSpace(r.Start); raw != "" {
		if input.Start, err = time.Parse(time.RFC3339, raw); err != nil {
			vErr.FieldErrors[prefix+"start"] = "must be an RFC 3339 timestamp"
		}
	}
	if raw := strings.TrimSpace(r.End); raw != "" {
		if input.End, err = time.Parse(time.RFC3339, raw); err != nil {
			vErr.FieldErrors[prefix+"end"] = "must be an RFC 3339 timestamp"
		}
	}
	if vErr.HasErrors() {
		return application.EventInput{}, vErr
	}
	return input, nil
}

type createEventRequest struct {
	eventRequest
	ProposerID    string `json:"proposer_id"`
	GCalRequested bool   `json:"gcal_requested"`
}

type updateEventRequest struct {
	ID string `json:"id"`
	eventRequest
}

type updateEventsRequest struct {
	Events []updateEventRequest `json:"events"`
}

type eventIDsRequest struct {
	EventIDs []string `json:"event_ids"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type batchResponse struct {
	Events []eventDTO       `json:"events"`
	Synced []syncedEventDTO `json:"synced"`
}

type syncedEventDTO struct {
	RemoteEventID string `json:"remote_event_id"`
	EventID       string `json:"event_id"`
}

type eventDTO struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Hash          string    `json:"hash"`
	Type          string    `json:"type"`
	IsDeleted     bool      `json:"is_deleted"`
	GCalRequested bool      `json:"gcal_requested"`
	GCalEventID   string    `json:"gcal_event_id,omitempty"`
	GCalID        string    `json:"gcal_id,omitempty"`
	ProposerID    string    `json:"proposer_id"`
	Proposer      *userDTO  `json:"proposer,omitempty"`
	Rsvps         []rsvpDTO `json:"rsvps,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	dto := eventDTO{
		ID:            event.ID,
		Title:         event.Title,
		Description:   event.Description,
		Location:      event.Location,
		Start:         event.Start.UTC().Format(time.RFC3339),
		End:           event.End.UTC().Format(time.RFC3339),
		Hash:          event.Hash,
		Type:          string(event.Type),
		IsDeleted:     event.IsDeleted,
		GCalRequested: event.GCalRequested,
		GCalEventID:   event.GCalEventID,
		GCalID:        event.GCalID,
		ProposerID:    event.ProposerID,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if event.Proposer != nil {
		proposer := toUserDTO(*event.Proposer)
		dto.Proposer = &proposer
	}
	for _, rsvp := range event.Rsvps {
		dto.Rsvps = append(dto.Rsvps, toRsvpDTO(rsvp))
	}
	return dto
}

func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func toBatchResponse(result application.EventBatchResult) batchResponse {
	resp := batchResponse{
		Events: toEventDTOs(result.Events),
		Synced: make([]syncedEventDTO, 0, len(result.Synced)),
	}
	for _, pair := range result.Synced {
		resp.Synced = append(resp.Synced, syncedEventDTO{RemoteEventID: pair.RemoteEventID, EventID: pair.EventID})
	}
	return resp
}
