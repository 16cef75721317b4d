package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	casemodels "sanitrack/internal/cases/models"
	identity "sanitrack/internal/identity/models"
	"sanitrack/internal/platform/middleware"
	"sanitrack/internal/transport/http/shared"
	"sanitrack/internal/workflow"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/requestcontext"
)

// Service defines the workflow operations the handler exposes.
type Service interface {
	GetCase(ctx context.Context, caseID id.CaseID) (*workflow.CaseView, error)
	ListCases(ctx context.Context, statuses []casemodels.Status, limit, offset int) (*workflow.CaseList, error)
	Approve(ctx context.Context, caseID id.CaseID, in workflow.ApproveInput) (*casemodels.Case, error)
	Reject(ctx context.Context, caseID id.CaseID, reason string) (*casemodels.Case, error)
	Acknowledge(ctx context.Context, caseID id.CaseID) (*casemodels.Case, error)
	Complete(ctx context.Context, caseID id.CaseID, evidenceRef string) (*casemodels.Case, error)
}

// Handler serves the case review and enforcement endpoints.
type Handler struct {
	cases  Service
	logger *slog.Logger
}

func New(cases Service, logger *slog.Logger) *Handler {
	return &Handler{cases: cases, logger: logger}
}

// Register mounts the case routes. The surrounding router applies
// RequireAuth; per-route role guards narrow access, and the service
// re-checks operation-level preconditions.
func (h *Handler) Register(r chi.Router) {
	admin := middleware.RequireRole(h.logger, identity.RoleAssemblyAdmin.String())
	officer := middleware.RequireRole(h.logger, identity.RoleEnforcementOfficer.String())
	adminOrOfficer := middleware.RequireRole(h.logger,
		identity.RoleAssemblyAdmin.String(), identity.RoleEnforcementOfficer.String())

	r.With(admin).Get("/cases", h.handleList)
	r.With(adminOrOfficer).Get("/cases/{id}", h.handleGet)
	r.With(admin).Post("/cases/{id}/approve", h.handleApprove)
	r.With(admin).Post("/cases/{id}/reject", h.handleReject)
	r.With(officer).Post("/cases/{id}/acknowledge", h.handleAcknowledge)
	r.With(officer).Post("/cases/{id}/complete", h.handleComplete)
}

type approveRequest struct {
	AssignedTo string `json:"assigned_to"`
	Notes      string `json:"notes,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type completeRequest struct {
	EvidenceRef string `json:"evidence_ref"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var statuses []casemodels.Status
	if raw := query.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, casemodels.Status(strings.TrimSpace(s)))
		}
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	list, err := h.cases.ListCases(ctx, statuses, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.cases.GetCase(ctx, caseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	officerID, err := id.ParseUserID(req.AssignedTo)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "assigned_to must be a valid user id"))
		return
	}
	updated, err := h.cases.Approve(ctx, caseID, workflow.ApproveInput{OfficerID: officerID, Notes: req.Notes})
	if err != nil {
		h.logWorkflowFailure(ctx, "approve", caseID, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	updated, err := h.cases.Reject(ctx, caseID, req.Reason)
	if err != nil {
		h.logWorkflowFailure(ctx, "reject", caseID, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	updated, err := h.cases.Acknowledge(ctx, caseID)
	if err != nil {
		h.logWorkflowFailure(ctx, "acknowledge", caseID, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, err := id.ParseCaseID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	updated, err := h.cases.Complete(ctx, caseID, req.EvidenceRef)
	if err != nil {
		h.logWorkflowFailure(ctx, "complete", caseID, err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) logWorkflowFailure(ctx context.Context, op string, caseID id.CaseID, err error) {
	h.logger.WarnContext(ctx, "case "+op+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"case_id", caseID.String(),
		"error", err.Error(),
	)
}
