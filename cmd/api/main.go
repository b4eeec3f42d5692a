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

	httpadapter "github.com/kirillkom/well-report-rag/internal/adapters/http"
	"github.com/kirillkom/well-report-rag/internal/bootstrap"
	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/observability/logging"
	"github.com/kirillkom/well-report-rag/internal/observability/metrics"
)

const serviceName = "wellrag-api"

func main() {
	cfg, err := config.LoadValidated()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)
	if err != nil {
		logger.Error("config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Warm(ctx); err != nil {
		logger.Warn("index_warm_failed", "error", err)
	}

	router := httpadapter.NewRouter(cfg, app.IngestUC, app.QueryUC, app.Repo, app.RetrieveUC, app.QueryUC).
		WithNodal(app.NodalUC).
		WithMetrics(metrics.NewHTTPServerMetrics(serviceName))
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.RequestTimeout + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
