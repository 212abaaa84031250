package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/repairflow/repairflow/internal/api/http"
	"github.com/repairflow/repairflow/internal/api/http/handlers"
	"github.com/repairflow/repairflow/internal/auth"
	"github.com/repairflow/repairflow/internal/config"
	"github.com/repairflow/repairflow/internal/events"
	"github.com/repairflow/repairflow/internal/filestore"
	"github.com/repairflow/repairflow/internal/masking"
	"github.com/repairflow/repairflow/internal/notify"
	"github.com/repairflow/repairflow/internal/observability"
	"github.com/repairflow/repairflow/internal/persistence"
	"github.com/repairflow/repairflow/internal/repository"
	"github.com/repairflow/repairflow/internal/service"
	"github.com/repairflow/repairflow/internal/worker"
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

	files, err := filestore.NewLocalStore(cfg.Files.Dir)
	if err != nil {
		logger.Fatal("failed to init file store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)
	maskFieldRepo := repository.NewMaskFieldRepository(pool)
	dispatchLogRepo := repository.NewDispatchLogRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	lineCustomerRepo := repository.NewLineCustomerRepository(pool)
	frequentRepo := repository.NewFrequentRepository(redis.Client)

	var detector masking.AIDetector
	if gemini := masking.NewGeminiDetector(cfg.Gemini.APIKey, cfg.Gemini.URL, cfg.Gemini.Timeout(), logger); gemini != nil {
		detector = gemini
	}
	engine := masking.NewEngine(detector, cfg.Gemini.Timeout(), logger)

	dispatcher := events.NewInMemoryDispatcher()
	messenger := notify.NewLineClient(cfg.Line, logger)
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, userRepo)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		CommentRepo:    commentRepo,
		AttachmentRepo: attachmentRepo,
		TemplateRepo:   templateRepo,
		MaskFieldRepo:  maskFieldRepo,
		FrequentRepo:   frequentRepo,
		Engine:         engine,
		Files:          files,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	workflowService := service.NewWorkflowService(service.WorkflowDependencies{
		TicketRepo:      ticketRepo,
		CommentRepo:     commentRepo,
		UserRepo:        userRepo,
		DispatchLogRepo: dispatchLogRepo,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	maskingService := service.NewMaskingService(engine, auditRepo, logger)
	maskFieldService := service.NewMaskFieldService(maskFieldRepo)
	tabularService := service.NewTabularService(engine, files, logger)
	templateService := service.NewTemplateService(templateRepo, frequentRepo)
	webhookService := service.NewLineWebhookService(userRepo, lineCustomerRepo, messenger, cfg.App.FrontendURL, logger)

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		Messenger:        messenger,
		UserRepo:         userRepo,
		TicketRepo:       ticketRepo,
		LineCustomerRepo: lineCustomerRepo,
		Logger:           logger,
	})
	worker.StartNotificationWorker(notificationService)

	reminder := worker.NewReminderWorker(ticketRepo, userRepo, messenger, logger)
	if err := reminder.Start(); err != nil {
		logger.Fatal("failed to start reminder worker", zap.Error(err))
	}
	defer reminder.Stop()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 20 * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService, userRepo),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Workflow:       handlers.NewWorkflowHandler(workflowService, ticketService),
		Mask:           handlers.NewMaskHandler(maskingService, maskFieldService),
		Tabular:        handlers.NewTabularHandler(tabularService),
		Templates:      handlers.NewTemplateHandler(templateService),
		LineWebhook:    handlers.NewLineWebhookHandler(webhookService, cfg.Line.ChannelSecret, logger),
		AuthMiddleware: authMiddleware,
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
