package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartai_gateway/internal/config"
	"smartai_gateway/internal/httpapi"
	"smartai_gateway/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := utils.NewLogger("main")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize gateway", "error", err)
		os.Exit(1)
	}

	handler := httpapi.NewRouter(app.httpDeps(), httpapi.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Provider calls are bounded by their own timeouts; leave headroom for
	// a full failover chain before the write deadline.
	writeTimeout := time.Duration(cfg.Gateway.MaxAttempts)*max(cfg.Gateway.RequestTimeout, cfg.Gateway.LocalTimeout) + 10*time.Second

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	app.startBackground(ctx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("SmartAI gateway listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		logger.Error("Server error", "error", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", "error", err)
	}

	app.shutdown(shutdownCtx)
	logger.Info("Server exited")
}
