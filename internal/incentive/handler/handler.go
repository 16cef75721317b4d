package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sanitrack/internal/incentive/service"
	"sanitrack/internal/transport/http/shared"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/requestcontext"
)

// Service defines the incentive reads the handler exposes.
type Service interface {
	Summary(ctx context.Context, citizenID id.UserID) (*service.Summary, error)
}

// Handler serves the citizen's incentive balance endpoint.
type Handler struct {
	incentives Service
	logger     *slog.Logger
}

func New(incentives Service, logger *slog.Logger) *Handler {
	return &Handler{incentives: incentives, logger: logger}
}

// Register mounts the incentive routes. The surrounding router applies
// RequireAuth; the summary is always scoped to the authenticated actor.
func (h *Handler) Register(r chi.Router) {
	r.Get("/incentives", h.handleSummary)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.incentives.Summary(ctx, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "incentive summary failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}
