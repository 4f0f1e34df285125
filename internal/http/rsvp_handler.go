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

type rsvpService interface {
	CreateRsvp(ctx context.Context, params application.CreateRsvpParams) (application.Rsvp, error)
	ListRsvps(ctx context.Context, hash string) ([]application.Rsvp, error)
	CancelRsvp(ctx context.Context, hash, attendeeID string) error
}

type RsvpHandler struct {
	service   rsvpService
	responder responder
	logger    *slog.Logger
}

func NewRsvpHandler(service rsvpService, logger *slog.Logger) *RsvpHandler {
	base := defaultLogger(logger)
	return &RsvpHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RsvpHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RsvpHandler", operation, attrs...)
}

func (h *RsvpHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	hash, ok := EventHashFromContext(r.Context())
	if !ok || strings.TrimSpace(hash) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventHash)
		return
	}

	var req rsvpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "event_hash", hash, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode rsvp request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "event_hash", hash, "add_to_calendar", req.AddToCalendar)
	rsvp, err := h.service.CreateRsvp(r.Context(), application.CreateRsvpParams{
		Hash:          hash,
		Email:         strings.TrimSpace(req.Email),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		Nickname:      strings.TrimSpace(req.Nickname),
		AddToCalendar: req.AddToCalendar,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "rsvp failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("rsvp_id", rsvp.ID).InfoContext(r.Context(), "rsvp created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, rsvpResponse{Rsvp: toRsvpDTO(rsvp)})
}

func (h *RsvpHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	hash, ok := EventHashFromContext(r.Context())
	if !ok || strings.TrimSpace(hash) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventHash)
		return
	}

	rsvps, err := h.service.ListRsvps(r.Context(), hash)
	if err != nil {
		h.log(r.Context(), "List", "event_hash", hash).ErrorContext(r.Context(), "failed to list rsvps", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := rsvpListResponse{Rsvps: make([]rsvpDTO, 0, len(rsvps))}
	for _, rsvp := range rsvps {
		resp.Rsvps = append(resp.Rsvps, toRsvpDTO(rsvp))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// Cancel removes an attendee's RSVP. The attendee comes from the
// attendee_id query parameter, falling back to a JSON body.
func (h *RsvpHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	hash, ok := EventHashFromContext(r.Context())
	if !ok || strings.TrimSpace(hash) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventHash)
		return
	}

	attendeeID := strings.TrimSpace(r.URL.Query().Get("attendee_id"))
	if attendeeID == "" && r.ContentLength != 0 {
		var req cancelRsvpRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.log(r.Context(), "Cancel", "event_hash", hash, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode rsvp cancellation", "error", err)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
		attendeeID = strings.TrimSpace(req.AttendeeID)
	}

	logger := h.log(r.Context(), "Cancel", "event_hash", hash, "attendee_id", attendeeID)
	if err := h.service.CancelRsvp(r.Context(), hash, attendeeID); err != nil {
		logger.ErrorContext(r.Context(), "rsvp cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "rsvp cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type cancelRsvpRequest struct {
	AttendeeID string `json:"attendee_id"`
}

type rsvpListResponse struct {
	Rsvps []rsvpDTO `json:"rsvps"`
}

type rsvpRequest struct {
	Email         string `json:"email"`
	WalletAddress string `json:"wallet_address"`
	Nickname      string `json:"nickname"`
	AddToCalendar bool   `json:"add_to_calendar"`
}

type rsvpResponse struct {
	Rsvp rsvpDTO `json:"rsvp"`
}

type rsvpDTO struct {
	ID                      string   `json:"id"`
	EventID                 string   `json:"event_id"`
	AttendeeID              string   `json:"attendee_id"`
	Attendee                *userDTO `json:"attendee,omitempty"`
	IsAddedToGoogleCalendar bool     `json:"is_added_to_google_calendar"`
	CreatedAt               string   `json:"created_at"`
}

func toRsvpDTO(rsvp application.Rsvp) rsvpDTO {
	dto := rsvpDTO{
		ID:                      rsvp.ID,
		EventID:                 rsvp.EventID,
		AttendeeID:              rsvp.AttendeeID,
		IsAddedToGoogleCalendar: rsvp.IsAddedToGoogleCalendar,
		CreatedAt:               rsvp.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if rsvp.Attendee != nil {
		attendee := toUserDTO(*rsvp.Attendee)
		dto.Attendee = &attendee
	}
	return dto
}
