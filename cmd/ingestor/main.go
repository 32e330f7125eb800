package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"feedback_ingest/internal/adapters/observability"
	"feedback_ingest/internal/app"
	"feedback_ingest/internal/domain"
	"feedback_ingest/internal/shared"
	"feedback_ingest/internal/wiring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("remote", cfg.RemoteURL).
		Str("store", cfg.StoreDriver).
		Int("workers", cfg.ClassifyWorkers).
		Dur("interval", cfg.IngestInterval).
		Bool("defer_failed", cfg.DeferFailed).
		Msg("ingestor starting")

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Exporter:    cfg.OtelExporter,
		SampleRatio: cfg.OtelSampleRatio,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("tracing init failed")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	metricsSrv := observability.Serve(cfg.MetricsAddr, observability.InitRegistry())
	if metricsSrv != nil {
		defer metricsSrv.Close()
	}

	deps, err := wiring.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring failed")
	}
	defer deps.Close()

	if cfg.AnalyzerKey == "" {
		log.Error().Msg("AI_API_KEY is required for the ingestor")
		os.Exit(1)
	}
	svc := deps.Ingestion(cfg)

	if cfg.IngestInterval <= 0 {
		if err := runOnce(ctx, svc, cfg.AnalyzerKey); err != nil {
			deps.Close()
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(cfg.IngestInterval)
	defer ticker.Stop()
	for {
		_ = runOnce(ctx, svc, cfg.AnalyzerKey)
		select {
		case <-ctx.Done():
			log.Info().Msg("ingestor stopped")
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, svc *app.IngestionService, apiKey string) error {
	res, err := svc.Process(ctx, app.ProcessOptions{APIKey: apiKey})
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		log.Info().Msg("another run holds the lock; skipping")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("ingestion run failed")
		return err
	}
	log.Info().
		Str("run_id", res.Metadata.RunID).
		Int("candidates", res.Metadata.TotalCandidates).
		Int("processed", res.Metadata.Processed).
		Int("skipped", res.Metadata.Skipped).
		Int("failed", res.Metadata.Failed).
		Msg("ingestion completed")
	return nil
}
