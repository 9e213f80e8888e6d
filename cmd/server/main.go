// Package main is the entry point of the numbering authority: it hands out
// number blocks to devices over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"fieldledger/internal/config"
	"fieldledger/internal/core/clock"
	"fieldledger/internal/domain/auth"
	v1 "fieldledger/internal/infrastructure/http/v1"
	"fieldledger/internal/infrastructure/metrics"
	"fieldledger/internal/infrastructure/reservation"
	"fieldledger/internal/infrastructure/storage/postgres"
	"fieldledger/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting numbering authority", "version", version)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Server.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	pool.LogStats(ctx)

	m, err := metrics.New(otel.GetMeterProvider())
	if err != nil {
		log.Fatalw("failed to create metrics", "error", err)
	}

	authority := reservation.NewAuthority(pool, clock.System{}, m)
	if err := authority.Migrate(ctx); err != nil {
		log.Fatalw("failed to migrate reservation table", "error", err)
	}

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.Server.JWTSecret), clock.System{})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Reserver:     authority,
		DB:           pool,
		Version:      version,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	_ = log.Sync()

	log.Info("server stopped")
}
