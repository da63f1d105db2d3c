package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/qwyt/wp-police-shooting/internal/adapter/http"
	"github.com/qwyt/wp-police-shooting/internal/adapter/jsonl"
	kafkaadapter "github.com/qwyt/wp-police-shooting/internal/adapter/kafka"
	"github.com/qwyt/wp-police-shooting/internal/adapter/sqlite"
	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ref, err := reference.Load(cfg.ReferencePath)
	if err != nil {
		logger.Error("failed to load reference data", "error", err)
		os.Exit(1)
	}

	sinks, closers, err := buildSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to open sinks", "error", err)
		os.Exit(1)
	}

	choose := domain.NewUnseededChooser()
	if cfg.WeaponChoiceSeed != nil {
		choose = domain.NewRandomChooser(*cfg.WeaponChoiceSeed)
		logger.Info("weapon choice seeded", "seed", *cfg.WeaponChoiceSeed)
	}

	sources := pipeline.NewFileSources(cfg, ref, logger, metrics)
	p, err := pipeline.New(sources, ref, sinks, pipeline.Options{
		BatchSize:    cfg.BatchSize,
		HomicideYear: cfg.HomicideYear,
		Choose:       choose,
	}, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the pipeline once; the server keeps serving its report until shutdown.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if _, err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeSinksAfterRun(shutdownCtx, runDone, closers, logger)

	logger.Info("shutdown complete")
}

// closeSinksAfterRun waits for the pipeline run to return before closing the
// sinks it writes to. If the run outlives ctx the sinks are closed anyway.
func closeSinksAfterRun(ctx context.Context, runDone <-chan struct{}, closers []io.Closer, logger *slog.Logger) {
	select {
	case <-runDone:
	case <-ctx.Done():
		logger.Warn("pipeline run still active at shutdown timeout, closing sinks")
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}
}

// buildSinks opens every sink enabled in cfg.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]pipeline.Sink, []io.Closer, error) {
	var sinks []pipeline.Sink
	var closers []io.Closer

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, nil, err
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
		logger.Info("sqlite sink enabled", "path", cfg.SQLitePath)
	}
	if cfg.OutputPath != "" {
		w := jsonl.NewWriter(cfg.OutputPath, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("jsonl sink enabled", "path", cfg.OutputPath)
	}
	if len(sinks) == 0 {
		logger.Info("no sinks configured, results are served from memory only")
	}
	return sinks, closers, nil
}
