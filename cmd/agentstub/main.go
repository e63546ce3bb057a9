// Package main is the entrypoint for the stub analysis agent. It serves the
// agent's HTTP contract from memory so the client can be exercised without the
// real service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/agentstub"
	"github.com/kiranshivaraju/analysisctl/internal/api"
	"github.com/kiranshivaraju/analysisctl/internal/api/handler"
	"github.com/kiranshivaraju/analysisctl/internal/config"
	"github.com/kiranshivaraju/analysisctl/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("agent stub failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	port := flag.Int("port", cfg.Stub.Port, "listen port")
	delay := flag.Duration("processing-time", cfg.Stub.ProcessingTime, "how long each job stays in processing")
	flag.Parse()

	slog.SetDefault(logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := agentstub.NewService(agentstub.KeywordAnalyzer{},
		agentstub.WithProcessingTime(*delay),
		agentstub.WithLogger(slog.Default()),
	)
	defer svc.Close()

	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newRouter(svc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agent stub listening", "addr", addr, "processing_time", delay.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("agent stub stopped gracefully")
	return nil
}

func newRouter(svc handler.JobService) http.Handler {
	return api.NewRouter(api.Dependencies{
		StatusHandler:   handler.NewStatusHandler(svc),
		AnalyzeHandler:  handler.NewAnalyzeHandler(svc),
		GetJobHandler:   handler.NewGetJobHandler(svc),
		ListJobsHandler: handler.NewListJobsHandler(svc),
	})
}
