package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-engine/internal/api/http"
	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/config"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/monitor"
	"github.com/spec-kit/sla-engine/internal/observability"
	"github.com/spec-kit/sla-engine/internal/persistence"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/internal/service"
	"github.com/spec-kit/sla-engine/internal/sla"
	"github.com/spec-kit/sla-engine/internal/worker"
	"github.com/spec-kit/sla-engine/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cal, err := calendar.FromConfig(cfg.Calendar)
	if err != nil {
		logger.Fatal("invalid business calendar", zap.Error(err))
	}
	calculator := sla.NewCalculator(cal)
	flow := workflow.New()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo       repository.TicketRepository
		staffRepo        repository.StaffRepository
		notificationRepo repository.NotificationRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		staffRepo = repository.NewStaffRepository(pool)
		notificationRepo = repository.NewNotificationRepository(pool)
	} else {
		logger.Warn("no postgres pool; running on in-memory repositories")
		memTickets := repository.NewMemoryTicketRepository()
		ticketRepo = memTickets
		staffRepo = repository.NewMemoryStaffRepository(memTickets)
		notificationRepo = repository.NewMemoryNotificationRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	intakeService := service.NewIntakeService(service.IntakeDependencies{
		TicketRepo: ticketRepo,
		StaffRepo:  staffRepo,
		Calculator: calculator,
		Workflow:   flow,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	complianceMonitor := monitor.New(monitor.Dependencies{
		Tickets:       ticketRepo,
		Staff:         staffRepo,
		Notifications: notificationRepo,
		Workflow:      flow,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
		Config:        cfg.Compliance,
	})

	complianceWorker := worker.NewComplianceWorker(complianceMonitor, redis, logger, cfg.Compliance)
	if err := complianceWorker.Start(); err != nil {
		logger.Fatal("failed to start compliance worker", zap.Error(err))
	}
	defer complianceWorker.Stop()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:    handlers.NewTicketsHandler(intakeService),
		Compliance: handlers.NewComplianceHandler(complianceMonitor, metrics),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
