package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/safecircle/backend/internal/metrics"
	"github.com/anonto42/safecircle/backend/internal/router"
	"github.com/anonto42/safecircle/backend/internal/validators"
	"github.com/anonto42/safecircle/backend/pkg/config"
	"github.com/anonto42/safecircle/backend/pkg/firebase"
	"github.com/anonto42/safecircle/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("safecircle api: %v", err)
	}
}

// run wires the server and blocks until a shutdown signal. Errors are returned
// so the deferred closers always run.
func run() error {
	// Load configuration
	cfg, loadedDotenv, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zl.Sync() //nolint:errcheck
	if !loadedDotenv {
		zl.Info("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, zl)
	if err != nil {
		return fmt.Errorf("initialize databases: %w", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, zl)
	if err != nil {
		return fmt.Errorf("initialize firebase: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	gateway := firebase.NewPushGateway(firebaseApp.Messaging, firebase.PushGatewayConfig{
		ChannelID:        cfg.PushChannelID,
		BatchSize:        cfg.PushBatchSize,
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerTimeout,
		OnStateChange: func(name string, _, to gobreaker.State) {
			m.SetBreakerState(name, int(to))
		},
	}, zl)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	config.SetupMiddleware(e, zl)

	if err := router.SetupRoutes(ctx, e, router.Deps{
		Postgres:  db.Postgres,
		Mongo:     db.Mongo.Database(cfg.MongoDatabase),
		Gateway:   gateway,
		Metrics:   m,
		Logger:    zl,
		JWTSecret: cfg.JWTSecret,
		JWTTTL:    cfg.JWTTTL,
	}); err != nil {
		return fmt.Errorf("set up routes: %w", err)
	}

	metricsServer := echo.New()
	metricsServer.HideBanner = true
	metricsServer.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	go func() {
		if err := metricsServer.Start(":" + cfg.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server stopped", zap.Error(err))
		}
	}()

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("api server stopped", zap.Error(err))
			stop()
		}
	}()
	zl.Info("api listening", zap.String("port", cfg.Port), zap.String("metrics_port", cfg.MetricsPort))

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("api shutdown", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		zl.Error("metrics shutdown", zap.Error(err))
	}
	return nil
}
