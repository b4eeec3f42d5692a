package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/well-report-rag/internal/adapters/cli"
	"github.com/kirillkom/well-report-rag/internal/bootstrap"
	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, openServices, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func openServices(_ context.Context) (*cli.Services, func(), error) {
	cfg, err := config.LoadValidated()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, "wellrag", cfg.LogLevel, true))

	app, err := bootstrap.NewLocal(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &cli.Services{
		Ingest:       app.IngestUC,
		Docs:         app.Repo,
		Query:        app.QueryUC,
		Retriever:    app.RetrieveUC,
		Trajectories: app.QueryUC,
		Nodal:        app.NodalUC,
		Warm:         app.Warm,
	}, app.Close, nil
}
