package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-fsm/meridian/internal/app"
	"github.com/meridian-fsm/meridian/internal/audit"
	"github.com/meridian-fsm/meridian/internal/auth"
	"github.com/meridian-fsm/meridian/internal/authz"
	"github.com/meridian-fsm/meridian/internal/observability"
	"github.com/meridian-fsm/meridian/internal/permission"
	"github.com/meridian-fsm/meridian/internal/platform/cache"
	"github.com/meridian-fsm/meridian/internal/platform/db"
	"github.com/meridian-fsm/meridian/internal/resources"
	"github.com/meridian-fsm/meridian/internal/roles"
	"github.com/meridian-fsm/meridian/internal/shared"
	"github.com/meridian-fsm/meridian/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rolesRepo := roles.NewRepository(dbpool)
	permCache := authz.NewRedisCache(redisClient, logger)
	resolver := authz.NewResolver(rolesRepo, permCache, cfg.PermCacheTTL)

	descriptorStore := resources.NewStore(dbpool)
	policy := authz.NewPolicyEngine(descriptorStore, authRepo)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo, audit.NewAsynqDispatcher(asynqClient), logger)

	metrics := observability.NewMetrics()

	authorizer := authz.NewAuthorizer(
		authz.ContextIdentity{},
		resolver,
		policy,
		audit.DecisionRecorder{Service: auditService},
		metrics,
		logger,
	)
	guard := authz.Middleware{Authorizer: authorizer, Logger: logger}

	rolesService := roles.NewService(rolesRepo, resolver, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, roles.Guard(guard.RequireAny))

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, resolver)
	usersHandler := users.NewHandler(logger, usersService, users.Guard(guard.RequireAny))

	auditHandler := audit.NewHandler(auditService, audit.Guard(guard.RequireAny))
	permissionsHandler := permission.NewHandler(permission.Guard(guard.RequireAny))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Identity:           authService,
		AuthHandler:        authHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: permissionsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
