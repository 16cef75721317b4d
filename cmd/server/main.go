// main wires storage, services, and the HTTP router, and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"sanitrack/internal/audit"
	authservice "sanitrack/internal/auth/service"
	authstore "sanitrack/internal/auth/store"
	casestore "sanitrack/internal/cases/store"
	identity "sanitrack/internal/identity/models"
	identitystore "sanitrack/internal/identity/store"
	incentiveservice "sanitrack/internal/incentive/service"
	incentivestore "sanitrack/internal/incentive/store"
	"sanitrack/internal/jwttoken"
	"sanitrack/internal/platform/config"
	"sanitrack/internal/platform/httpserver"
	"sanitrack/internal/platform/logger"
	"sanitrack/internal/platform/metrics"
	"sanitrack/internal/platform/postgres"
	platformredis "sanitrack/internal/platform/redis"
	reportservice "sanitrack/internal/report/service"
	reportstore "sanitrack/internal/report/store"
	httptransport "sanitrack/internal/transport/http"
	"sanitrack/internal/workflow"
	id "sanitrack/pkg/domain"
	"sanitrack/pkg/platform/sentinel"
)

// userDirectory is what the wiring needs from the identity store: account
// provisioning for auth, actor lookup for the workflow.
type userDirectory interface {
	authservice.UserStore
	workflow.UserFinder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration failed", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Audit events flow through a buffered channel into a background worker.
	auditInbox := make(chan audit.Event, 256)
	auditStore := audit.NewInMemoryStore()
	auditPublisher := audit.NewChannelPublisher(auditInbox)
	auditWorker := audit.NewWorker(auditStore, auditInbox)

	// Storage: postgres when configured, in-memory otherwise.
	var (
		db             *sql.DB
		users          userDirectory
		caseStore      workflow.CaseStore
		incentiveStore incentiveservice.Store
		reportStore    reportservice.ReportStore
		reportCases    reportservice.CaseStore
		reportIncs     reportservice.IncentiveStore
		workflowTx     workflow.StoreTx
		reportTx       reportservice.StoreTx
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			_ = db.Close()
		}()

		users = identitystore.NewPostgres(db)
		caseStore = casestore.NewPostgres(db)
		incentiveStore = incentivestore.NewPostgres(db)
		reportStore = reportstore.NewPostgres(db)
		reportCases = casestore.NewPostgres(db)
		reportIncs = incentivestore.NewPostgres(db)
		workflowTx = newWorkflowPostgresTx(db, cfg.Database.TxTimeout)
		reportTx = newReportPostgresTx(db, cfg.Database.TxTimeout)
		log.Info("storage ready", "backend", "postgres")
	} else {
		memUsers := identitystore.NewInMemory()
		memCases := casestore.NewInMemory()
		memIncentives := incentivestore.NewInMemory()
		memReports := reportstore.NewInMemory()

		users = memUsers
		caseStore = memCases
		incentiveStore = memIncentives
		reportStore = memReports
		reportCases = memCases
		reportIncs = memIncentives
		workflowTx = workflow.NewInMemoryStoreTx(
			workflow.Stores{Cases: memCases, Incentives: memIncentives},
			memCases, memIncentives,
		)
		reportTx = reportservice.NewInMemoryStoreTx(
			reportservice.Stores{Reports: memReports, Cases: memCases, Incentives: memIncentives},
			memReports, memCases, memIncentives,
		)
		log.Warn("storage ready", "backend", "memory", "note", "data is not durable")
	}

	// OTP challenges: redis when configured, process memory otherwise.
	var otpStore authservice.OTPStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
		otpStore = authstore.NewRedis(redisClient)
		log.Info("otp store ready", "backend", "redis")
	} else {
		otpStore = authstore.NewInMemory()
		log.Warn("otp store ready", "backend", "memory")
	}

	if err := seedUsers(rootCtx, users, cfg.Seed, log); err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	policy := incentiveservice.NewPolicy(cfg.Incentive.PointsPerVerifiedReport)
	ledger := incentiveservice.NewLedger(policy)
	incentiveSvc := incentiveservice.NewService(incentiveStore)
	workflowSvc := workflow.New(workflowTx, caseStore, incentiveStore, reportStore, users, ledger,
		workflow.WithLogger(log),
		workflow.WithAuditPublisher(auditPublisher),
		workflow.WithMetrics(m),
	)
	reportSvc := reportservice.New(reportTx, reportStore, reportCases, reportIncs,
		reportservice.WithLogger(log),
		reportservice.WithAuditPublisher(auditPublisher),
		reportservice.WithMetrics(m),
	)
	authSvc := authservice.New(otpStore, users, jwtService, cfg.Auth.OTPTTL, cfg.Auth.AccessTokenTTL,
		authservice.WithLogger(log),
		authservice.WithAuditPublisher(auditPublisher),
	)

	router := httptransport.New(httptransport.Services{
		Auth:       authSvc,
		Reports:    reportSvc,
		Cases:      workflowSvc,
		Incentives: incentiveSvc,
	}, jwtValidator, log, m, healthz(db, redisClient))

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		if err := auditWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// seedUsers provisions the configured admin and officer accounts so the
// workflow has privileged actors from the first request.
func seedUsers(ctx context.Context, users authservice.UserStore, seed config.SeedConfig, log *slog.Logger) error {
	entries := []struct {
		phone string
		role  identity.Role
	}{
		{seed.AdminPhone, identity.RoleAssemblyAdmin},
		{seed.OfficerPhone, identity.RoleEnforcementOfficer},
	}
	for _, entry := range entries {
		if entry.phone == "" {
			continue
		}
		phone, err := identity.NormalizePhone(entry.phone)
		if err != nil {
			return err
		}
		if _, err := users.FindByPhone(ctx, phone); err == nil {
			continue
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		user, err := identity.NewUser(id.NewUserID(), phone, entry.role, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := users.Create(ctx, user); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		log.Info("seeded account", "role", entry.role.String(), "user_id", user.ID.String())
	}
	return nil
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, `{"status":"degraded","component":"postgres"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","component":"redis"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
