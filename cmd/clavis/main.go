package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clavis-iam/clavis-iam/internal/app"
	"github.com/clavis-iam/clavis-iam/internal/observability"
	"github.com/clavis-iam/clavis-iam/internal/platform/cache"
	"github.com/clavis-iam/clavis-iam/internal/platform/db"
	"github.com/clavis-iam/clavis-iam/internal/rbac"
	"github.com/clavis-iam/clavis-iam/internal/session"
	"github.com/clavis-iam/clavis-iam/internal/shared"
	"github.com/clavis-iam/clavis-iam/internal/token"
	"github.com/clavis-iam/clavis-iam/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	issuer, err := token.NewIssuer(token.Config{
		Secret:    cfg.JWTSecret,
		Algorithm: cfg.JWTAlgorithm,
		TTL:       cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Error("configure token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The throttle degrades open without Redis; authorization itself
	// never depends on it.
	var throttle *shared.LoginThrottle
	if redisClient, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, login throttle disabled", slog.Any("error", err))
	} else {
		defer redisClient.Close()
		throttle = shared.NewLoginThrottle(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)

	userRepo := users.NewRepository(pool)
	userService := users.NewService(userRepo)

	ruleRepo := rbac.NewRepository(pool)
	ruleService := rbac.NewService(ruleRepo)
	evaluator := rbac.NewEvaluator(ruleService, userRepo, metrics)

	resolver := session.NewResolver(issuer, userRepo)
	sessionMW := session.Middleware{Resolver: resolver, Logger: logger}
	rbacMW := rbac.Middleware{Evaluator: evaluator, Directory: userRepo, Logger: logger}

	usersHandler := users.NewHandler(logger, userService, issuer, evaluator, throttle, audit, cfg.IsProduction())
	permissionsHandler := rbac.NewHandler(logger, ruleService, audit)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		SessionMiddleware:  sessionMW,
		RBACMiddleware:     rbacMW,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
