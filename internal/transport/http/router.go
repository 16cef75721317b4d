// Package httptransport assembles the public HTTP surface: middleware
// chain, public auth/health/metrics routes, and the authenticated API.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authhandler "sanitrack/internal/auth/handler"
	casehandler "sanitrack/internal/cases/handler"
	incentivehandler "sanitrack/internal/incentive/handler"
	"sanitrack/internal/platform/metrics"
	"sanitrack/internal/platform/middleware"
	reporthandler "sanitrack/internal/report/handler"
)

const requestTimeout = 30 * time.Second

// Services are the domain services the router exposes.
type Services struct {
	Auth       authhandler.Service
	Reports    reporthandler.Service
	Cases      casehandler.Service
	Incentives incentivehandler.Service
}

// New builds the full router. health may be nil when no backing stores need
// probing.
func New(services Services, validator middleware.JWTValidator, logger *slog.Logger, m *metrics.Metrics, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.LatencyMiddleware(m))

	if health == nil {
		health = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}
	r.Get("/healthz", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	authhandler.New(services.Auth, logger).Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		r.Use(middleware.ContentTypeJSON)
		reporthandler.New(services.Reports, logger).Register(r)
		casehandler.New(services.Cases, logger).Register(r)
		incentivehandler.New(services.Incentives, logger).Register(r)
	})

	return r
}
