package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/eventrsvp/internal/application"
)

type collectionService interface {
	CreateCollection(ctx context.Context, params application.CreateCollectionParams) (application.Collection, error)
	GetCollection(ctx context.Context, id string) (application.Collection, error)
	ListCollections(ctx context.Context, ownerID string) ([]application.Collection, error)
	AddEvents(ctx context.Context, params application.CollectionEventsParams) (application.Collection, error)
	RemoveEvents(ctx context.Context, params application.CollectionEventsParams) (application.Collection, error)
}

type CollectionHandler struct {
	service   collectionService
	responder responder
	logger    *slog.Logger
}

func NewCollectionHandler(service collectionService, logger *slog.Logger) *CollectionHandler {
	base := defaultLogger(logger)
	return &CollectionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CollectionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CollectionHandler", operation, attrs...)
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req collectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode collection request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "owner_id", req.OwnerID)
	collection, err := h.service.CreateCollection(r.Context(), application.CreateCollectionParams{
		OwnerID:  strings.TrimSpace(req.OwnerID),
		Name:     req.Name,
		EventIDs: req.EventIDs,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "collection creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("collection_id", collection.ID).InfoContext(r.Context(), "collection created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, collectionResponse{Collection: toCollectionDTO(collection)})
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	logger := h.log(r.Context(), "List", "owner_id", ownerID)
	collections, err := h.service.ListCollections(r.Context(), ownerID)
	if err != nil {
		logger.ErrorContext(r.Context(), "collection list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]collectionDTO, 0, len(collections))
	for _, collection := range collections {
		out = append(out, toCollectionDTO(collection))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "collections listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCollectionsResponse{Collections: out})
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	collectionID, ok := CollectionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(collectionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCollectionID)
		return
	}

	collection, err := h.service.GetCollection(r.Context(), collectionID)
	if err != nil {
		h.log(r.Context(), "Get", "collection_id", collectionID).ErrorContext(r.Context(), "collection lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, collectionResponse{Collection: toCollectionDTO(collection)})
}

func (h *CollectionHandler) AddEvents(w http.ResponseWriter, r *http.Request) {
	h.changeEvents(w, r, "AddEvents", func(ctx context.Context, params application.CollectionEventsParams) (application.Collection, error) {
		return h.service.AddEvents(ctx, params)
	})
}

func (h *CollectionHandler) RemoveEvents(w http.ResponseWriter, r *http.Request) {
	h.changeEvents(w, r, "RemoveEvents", func(ctx context.Context, params application.CollectionEventsParams) (application.Collection, error) {
		return h.service.RemoveEvents(ctx, params)
	})
}

func (h *CollectionHandler) changeEvents(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.CollectionEventsParams) (application.Collection, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	collectionID, ok := CollectionIDFromContext(r.Context())
	if !ok || strings.TrimSpace(collectionID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidCollectionID)
		return
	}

	var req eventIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "collection_id", collectionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode collection events", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), operation, "collection_id", collectionID, "event_count", len(req.EventIDs))
	collection, err := apply(r.Context(), application.CollectionEventsParams{CollectionID: collectionID, EventIDs: req.EventIDs})
	if err != nil {
		logger.ErrorContext(r.Context(), "collection change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "collection events changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, collectionResponse{Collection: toCollectionDTO(collection)})
}

type collectionRequest struct {
	OwnerID  string   `json:"owner_id"`
	Name     string   `json:"name"`
	EventIDs []string `json:"event_ids"`
}

type collectionResponse struct {
	Collection collectionDTO `json:"collection"`
}

type listCollectionsResponse struct {
	Collections []collectionDTO `json:"collections"`
}

type collectionDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Slug      string   `json:"slug"`
	OwnerID   string   `json:"owner_id"`
	EventIDs  []string `json:"event_ids"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toCollectionDTO(collection application.Collection) collectionDTO {
	eventIDs := collection.EventIDs
	if eventIDs == nil {
		eventIDs = []string{}
	}
	return collectionDTO{
		ID:        collection.ID,
		Name:      collection.Name,
		Slug:      collection.Slug,
		OwnerID:   collection.OwnerID,
		EventIDs:  eventIDs,
		CreatedAt: collection.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: collection.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
