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

	"safedrop-backend/internal/app"
	"safedrop-backend/internal/config"
	"safedrop-backend/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "safedrop: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load .env before reading the configuration. Missing is fine when
	// the variables come from the environment (Docker/K8s).
	envErr := godotenv.Load()

	// 2. Load configuration
	var cfg config.Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Env)
	if envErr != nil {
		logger.Warn("no .env file loaded, using the process environment", "error", envErr)
	}

	// 3. Wire stores and services, applying migrations on startup
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	application, err := app.New(initCtx, &cfg, logger, true)
	if err != nil {
		return err
	}
	defer application.Close()

	// 4. Configure the HTTP server. Downloads are sent in one response, so
	// the write timeout is generous.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           application.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// 5. Start serving
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 6. Wait for a shutdown signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
