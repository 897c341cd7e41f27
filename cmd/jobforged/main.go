package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jobforge/jobforge/internal/config"
	"github.com/jobforge/jobforge/internal/db"
	httpx "github.com/jobforge/jobforge/internal/http"
	"github.com/jobforge/jobforge/internal/observability"
)

// jobforged is the long-lived process: it owns the Queue, the
// WorkerPoolManager's Processors, the Scheduler, the Monitor, and the
// operator-facing HTTP API described in SPEC_FULL.md §4, all in one
// address space (spec.md §5's "single authoritative process" model).
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	shutdownTracer, err := observability.InitTracer(ctx, "jobforged", traceEndpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tracer init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	log := slog.New(observability.NewTraceHandler(observability.NewLogger(cfg.Env).Handler()))

	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	seedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.EnsureAdminUser(seedCtx, pool, cfg)
	cancel()
	if err != nil {
		log.Error("failed to seed admin user", "err", err)
		os.Exit(1)
	}

	engine := httpx.NewRouter(log, pool, cfg)
	engine.Start(ctx, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("jobforged.start", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("jobforged.shutdown_signal_received")

	shutdownCtx, cancelFunc := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelFunc()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server graceful shutdown failed", "err", err)
		_ = srv.Close()
	} else {
		log.Info("jobforged.server_stopped")
	}

	engine.Stop(cfg)
	log.Info("jobforged.engine_stopped")
}
