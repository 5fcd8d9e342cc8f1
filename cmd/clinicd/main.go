package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cabinethub/clinicdesk/internal/adapters/database"
	"github.com/cabinethub/clinicdesk/internal/application/services"
	"github.com/cabinethub/clinicdesk/internal/domain/entities"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/clients/sqlite"
	"github.com/cabinethub/clinicdesk/internal/infrastructure/observability"
	"github.com/cabinethub/clinicdesk/pkg/config"
)

func main() {
	// Optional .env file for local runs
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger("clinicdesk", cfg.Log.Env, cfg.Log.Level)
	logger := *observability.GetLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database pool and schema; both are fatal when they fail. Running
	// against a partially initialized schema is worse than not starting.
	pool, err := sqlite.NewPool(&cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database connection pool")
	}
	defer pool.Shutdown()

	if err := sqlite.NewSchema(pool, logger).Init(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database schema")
	}

	// Repositories
	patientRepo := database.NewPatientAdapter(pool, logger)
	visitRepo := database.NewVisitAdapter(pool, logger)
	serviceRepo := database.NewServiceAdapter(pool, logger)
	userRepo := database.NewUserAdapter(pool, logger)
	auditRepo := database.NewAuditAdapter(pool, logger)
	reportRepo := database.NewReportAdapter(pool, logger)

	// Services
	audit := services.NewAuditTrail(auditRepo, logger)
	defer audit.Close()

	auth := services.NewAuthService(userRepo, audit, logger)
	queue := services.NewQueueService(visitRepo, patientRepo, audit, cfg.Queue.AllowRepeatArrival, logger)
	reports := services.NewReportService(reportRepo, logger)

	// First-run bootstrap: provision the admin account when the users
	// table is empty.
	exists, err := auth.UsersExist(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to check for existing users")
	}
	if !exists {
		if cfg.Bootstrap.AdminPassword == "" {
			logger.Fatal().Msg("no users exist and BOOTSTRAP_ADMIN_PASSWORD is not set")
		}
		if _, err := auth.AddUser(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword, entities.RoleAdmin); err != nil {
			logger.Fatal().Err(err).Msg("failed to provision bootstrap admin")
		}
		logger.Info().Str("username", cfg.Bootstrap.AdminUsername).Msg("provisioned bootstrap admin")
	}

	// Initial projection, then the periodic refresh loop.
	if err := queue.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to load today's records")
	}
	go queue.Run(ctx, cfg.Queue.RefreshInterval)

	// Startup status: configured services and today's takings so far.
	if configured, err := serviceRepo.List(ctx); err == nil {
		logger.Info().Int("services", len(configured)).Msg("service catalog loaded")
	} else {
		logger.Warn().Err(err).Msg("failed to load service catalog")
	}
	today := time.Now()
	if summary, err := reports.FinancialSummary(ctx, today, today); err == nil {
		logger.Info().
			Int64("visits", summary.TotalVisits).
			Int64("revenue", summary.TotalRevenue).
			Msg("today so far")
	}

	snapshot := queue.Snapshot()
	logger.Info().
		Str("db_path", cfg.Database.Path).
		Dur("refresh_interval", cfg.Queue.RefreshInterval).
		Int("waiting", len(snapshot.Waiting)).
		Msg("clinicdesk started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	cancel()
}
