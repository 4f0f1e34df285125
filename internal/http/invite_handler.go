package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/eventrsvp/internal/application"
)

type inviteService interface {
	SendInvites(ctx context.Context, params application.SendInvitesParams) error
}

// InviteHandler adds an attendee to the calendar entries of existing events.
type InviteHandler struct {
	service   inviteService
	responder responder
	logger    *slog.Logger
}

func NewInviteHandler(service inviteService, logger *slog.Logger) *InviteHandler {
	base := defaultLogger(logger)
	return &InviteHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InviteHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "InviteHandler", operation, attrs...)
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode invite request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "event_count", len(req.EventIDs))
	err := h.service.SendInvites(r.Context(), application.SendInvitesParams{
		EventIDs: req.EventIDs,
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "invite failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "invites sent")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, inviteResponse{Success: true})
}

type inviteRequest struct {
	EventIDs []string `json:"event_ids"`
	Email    string   `json:"email"`
}

type inviteResponse struct {
	Success bool `json:"success"`
}
