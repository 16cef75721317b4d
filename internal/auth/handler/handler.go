package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sanitrack/internal/auth/service"
	"sanitrack/internal/transport/http/shared"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/requestcontext"
)

// Service defines the auth operations the handler exposes.
type Service interface {
	RequestOTP(ctx context.Context, phone string) (*service.OTPChallenge, error)
	VerifyOTP(ctx context.Context, phone, code string) (*service.TokenResult, error)
}

// Handler serves the unauthenticated login endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the auth routes. These stay outside the RequireAuth chain.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/otp/request", h.handleRequestOTP)
	r.Post("/auth/otp/verify", h.handleVerifyOTP)
}

type requestOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

func (h *Handler) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req requestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	challenge, err := h.auth.RequestOTP(ctx, req.PhoneNumber)
	if err != nil {
		h.logger.WarnContext(ctx, "otp request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, challenge)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Code == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "code is required"))
		return
	}
	result, err := h.auth.VerifyOTP(ctx, req.PhoneNumber, req.Code)
	if err != nil {
		h.logger.WarnContext(ctx, "otp verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}
