package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/carelink/healthcare-identity/internal/api/http"
	"github.com/carelink/healthcare-identity/internal/api/http/handlers"
	"github.com/carelink/healthcare-identity/internal/auth"
	"github.com/carelink/healthcare-identity/internal/config"
	"github.com/carelink/healthcare-identity/internal/events"
	"github.com/carelink/healthcare-identity/internal/notify"
	"github.com/carelink/healthcare-identity/internal/observability"
	"github.com/carelink/healthcare-identity/internal/persistence"
	"github.com/carelink/healthcare-identity/internal/repository"
	"github.com/carelink/healthcare-identity/internal/service"
	"github.com/carelink/healthcare-identity/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	var (
		identityRepo     repository.IdentityRepository
		verificationRepo repository.VerificationRepository
	)
	deps := map[string]handlers.Pinger{"redis": redis}
	if pg.Enabled() {
		identityRepo = repository.NewIdentityRepository(pg.Pool)
		verificationRepo = repository.NewVerificationRepository(pg.Pool)
		deps["postgres"] = pg
	} else {
		identityRepo = repository.NewMemoryIdentityRepository()
		verificationRepo = repository.NewMemoryVerificationRepository(identityRepo)
	}
	sessionRepo := repository.NewSessionRepository(redis.Client)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(notify.NewTransports(cfg.Notification), logger)
	notificationWorker := worker.StartNotificationWorker(dispatcher, notifications, logger,
		cfg.Notification.Workers, cfg.Notification.QueueSize)
	defer notificationWorker.Stop()

	credentials := service.NewCredentialService(cfg.Auth, identityRepo, logger)
	sessions := service.NewSessionService(cfg.Auth, credentials, sessionRepo, logger)
	otp := service.NewOTPService(cfg.OTP, service.OTPDependencies{
		Credentials: credentials,
		Challenges:  repository.NewOTPRepository(redis.Client),
		Limiter:     repository.NewRateLimiter(redis.Client),
		Sessions:    sessionRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	verification := service.NewVerificationService(credentials, verificationRepo, dispatcher, logger)

	if cfg.Auth.BootstrapAdminEmail != "" {
		admin, err := credentials.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		logger.Info("bootstrap admin ready", zap.String("identity_id", admin.ID))
	}

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Identity:       handlers.NewIdentityHandler(credentials, sessions, verification),
		Password:       handlers.NewPasswordHandler(otp),
		Verification:   handlers.NewVerificationHandler(verification),
		AuthMiddleware: auth.NewAuthMiddleware(sessions),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
