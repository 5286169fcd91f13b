package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docvault-backend/internal/bootstrap"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/server"
	"docvault-backend/internal/shared/storage/db"
	"docvault-backend/internal/shared/telemetry"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogPretty, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		if err := db.RunMigrations(ctx, app.DB); err != nil {
			log.Fatalf("migrations: %v", err)
		}
	}

	if err := app.StartPipeline(ctx); err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("api.listen", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
		telemetry.Info("api.shutdown", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
