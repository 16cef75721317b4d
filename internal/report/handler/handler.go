package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	identity "sanitrack/internal/identity/models"
	"sanitrack/internal/platform/middleware"
	"sanitrack/internal/report/models"
	"sanitrack/internal/report/service"
	"sanitrack/internal/transport/http/shared"
	id "sanitrack/pkg/domain"
	dErrors "sanitrack/pkg/domain-errors"
	"sanitrack/pkg/requestcontext"
)

// Service defines the report operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, in models.NewReportInput) (*service.ReportView, error)
	Get(ctx context.Context, reportID id.ReportID) (*service.ReportView, error)
	List(ctx context.Context, filter models.ListFilter, limit, offset int) (*service.ReportList, error)
	AggregateByLocation(ctx context.Context, box models.BoundingBox, category models.Category) ([]models.LocationBucket, error)
}

// Handler serves the citizen-facing report endpoints plus the admin
// location aggregation.
type Handler struct {
	reports Service
	logger  *slog.Logger
}

func New(reports Service, logger *slog.Logger) *Handler {
	return &Handler{reports: reports, logger: logger}
}

// Register mounts the report routes. The surrounding router applies
// RequireAuth; the aggregation route additionally demands the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Post("/reports", h.handleSubmit)
	r.Get("/reports", h.handleList)
	r.With(middleware.RequireRole(h.logger, identity.RoleAssemblyAdmin.String())).
		Get("/reports/locations", h.handleLocations)
	r.Get("/reports/{id}", h.handleGet)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in models.NewReportInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	view, err := h.reports.Submit(ctx, in)
	if err != nil {
		h.logger.WarnContext(ctx, "report submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	view, err := h.reports.Get(ctx, reportID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := models.ListFilter{Category: models.Category(query.Get("category"))}
	var err error
	if filter.From, err = parseTimeParam(query.Get("from")); err != nil {
		shared.WriteError(w, err)
		return
	}
	if filter.To, err = parseTimeParam(query.Get("to")); err != nil {
		shared.WriteError(w, err)
		return
	}
	limit, offset := parsePagination(query.Get("limit"), query.Get("offset"))

	list, err := h.reports.List(ctx, filter, limit, offset)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	box, err := parseBoundingBox(query.Get("min_lat"), query.Get("max_lat"), query.Get("min_lon"), query.Get("max_lon"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	buckets, err := h.reports.AggregateByLocation(ctx, box, models.Category(query.Get("category")))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"locations": buckets})
}

func parseBoundingBox(minLat, maxLat, minLon, maxLon string) (models.BoundingBox, error) {
	values := [4]float64{}
	for i, raw := range []string{minLat, maxLat, minLon, maxLon} {
		if raw == "" {
			return models.BoundingBox{}, dErrors.New(dErrors.CodeValidation, "min_lat, max_lat, min_lon and max_lon are required")
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.BoundingBox{}, dErrors.New(dErrors.CodeValidation, "bounding box values must be numbers")
		}
		values[i] = v
	}
	return models.BoundingBox{MinLat: values[0], MaxLat: values[1], MinLon: values[2], MaxLon: values[3]}, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "time filters must be RFC3339")
	}
	return t, nil
}

func parsePagination(rawLimit, rawOffset string) (int, int) {
	limit, _ := strconv.Atoi(rawLimit)
	offset, _ := strconv.Atoi(rawOffset)
	return limit, offset
}
