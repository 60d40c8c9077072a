package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/request-service/internal/api/http"
	"github.com/spec-kit/request-service/internal/api/http/handlers"
	"github.com/spec-kit/request-service/internal/auth"
	"github.com/spec-kit/request-service/internal/config"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/observability"
	"github.com/spec-kit/request-service/internal/persistence"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/repository/memory"
	"github.com/spec-kit/request-service/internal/service"
	"github.com/spec-kit/request-service/internal/storage"
	"github.com/spec-kit/request-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
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

	var repos repository.Set
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresSet(pg.PoolHandle())
	} else {
		repos = memory.NewStore().Repositories()
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	blobs, err := newBlobStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to init document storage", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var sink *events.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		sink = events.NewKafkaSink(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		defer sink.Close()
	}

	auditService := service.NewAuditService(repos.Audit, logger)
	permissionService := service.NewPermissionService(repos.Permissions, auditService, logger)
	if err := service.Bootstrap(ctx, cfg.Auth, service.BootstrapDependencies{
		Permissions:  permissionService,
		RoleRepo:     repos.Roles,
		EmployeeRepo: repos.Employees,
		Logger:       logger,
	}); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	limiter := auth.NewLoginLimiter(redis.Client, cfg.Auth.LoginMaxAttempts,
		cfg.Auth.LoginWindow(), logger)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		CustomerRepo:          repos.Customers,
		EmployeeRepo:          repos.Employees,
		RefreshTokenRepo:      repos.RefreshTokens,
		PasswordResetRepo:     repos.PasswordResets,
		EmailVerificationRepo: repos.EmailVerifications,
		Limiter:               limiter,
		Audit:                 auditService,
		Logger:                logger,
	})
	customerService := service.NewCustomerService(repos.Customers, repos.RefreshTokens, auditService, logger)
	employeeService := service.NewEmployeeService(service.EmployeeDependencies{
		EmployeeRepo:     repos.Employees,
		RoleRepo:         repos.Roles,
		RefreshTokenRepo: repos.RefreshTokens,
		Audit:            auditService,
		Logger:           logger,
		BcryptCost:       cfg.Auth.BcryptCost,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		RoleRepo:       repos.Roles,
		PermissionRepo: repos.Permissions,
		EmployeeRepo:   repos.Employees,
		Audit:          auditService,
		Logger:         logger,
	})
	catalogService := service.NewCatalogService(repos.Catalog, auditService, cfg.Billing.Currency)
	requestService := service.NewRequestService(service.RequestDependencies{
		RequestRepo:  repos.Requests,
		CatalogRepo:  repos.Catalog,
		InvoiceRepo:  repos.Invoices,
		DocumentRepo: repos.Documents,
		Blobs:        blobs,
		Dispatcher:   dispatcher,
		Audit:        auditService,
		Metrics:      metrics,
		Logger:       logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		RequestRepo:  repos.Requests,
		EmployeeRepo: repos.Employees,
		Dispatcher:   dispatcher,
		Audit:        auditService,
		Logger:       logger,
	})
	invoiceService := service.NewInvoiceService(service.InvoiceDependencies{
		InvoiceRepo: repos.Invoices,
		RequestRepo: repos.Requests,
		Dispatcher:  dispatcher,
		Audit:       auditService,
		Logger:      logger,
		Billing:     cfg.Billing,
	})
	paymentService := service.NewPaymentService(service.PaymentDependencies{
		PaymentRepo: repos.Payments,
		InvoiceRepo: repos.Invoices,
		Dispatcher:  dispatcher,
		Audit:       auditService,
		Logger:      logger,
	})
	documentService := service.NewDocumentService(service.DocumentDependencies{
		DocumentRepo: repos.Documents,
		RequestRepo:  repos.Requests,
		Blobs:        blobs,
		Dispatcher:   dispatcher,
		Audit:        auditService,
		Logger:       logger,
		Storage:      cfg.Storage,
	})
	notificationService := service.NewNotificationService(repos.Notifications, dispatcher, logger, cfg.Notification)
	dashboardService := service.NewDashboardService(service.DashboardDependencies{
		RequestRepo:  repos.Requests,
		CustomerRepo: repos.Customers,
		EmployeeRepo: repos.Employees,
		InvoiceRepo:  repos.Invoices,
		Cache:        redis.Client,
		CacheTTL:     cfg.Redis.DashboardCacheTTL(),
		Logger:       logger,
	})

	worker.StartNotificationWorker(notificationService, dispatcher, sink)
	scheduler, err := worker.StartScheduler(cfg.Cron, authService, invoiceService, logger)
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	gate := auth.NewGate(repos.Roles, repos.Permissions)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), repos.Customers, repos.Employees)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
		Immutable:    true,
		BodyLimit:    int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:          cfg.App.RequestTimeout(),
		CORSAllowOrigins: cfg.App.CORSAllowOrigins,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService, gate),
		Customers:      handlers.NewCustomersHandler(customerService),
		Employees:      handlers.NewEmployeesHandler(employeeService),
		Roles:          handlers.NewRolesHandler(roleService, permissionService),
		Catalog:        handlers.NewCatalogHandler(catalogService),
		Requests:       handlers.NewRequestsHandler(requestService, assignmentService),
		Billing:        handlers.NewBillingHandler(invoiceService, paymentService),
		Documents:      handlers.NewDocumentsHandler(documentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Reports:        handlers.NewReportsHandler(dashboardService, auditService),
		AuthMiddleware: authMiddleware,
		Gate:           gate,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	scheduler.Stop(shutdownCtx)
	_ = app.ShutdownWithContext(shutdownCtx)
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.BlobStore, error) {
	if cfg.S3Bucket == "" {
		logger.Warn("S3_BUCKET not provided; documents kept in memory")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("documents stored in s3", zap.String("bucket", cfg.S3Bucket))
	return store, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
