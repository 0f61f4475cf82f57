package main

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"storyvox/internal/config"
	"storyvox/internal/objectstore"
	"storyvox/internal/providers"
	"storyvox/internal/queue"
	"storyvox/internal/store"
	"storyvox/internal/voices"
	"storyvox/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the chapter job worker",
	Long: `Start a long-running worker that pulls chapter jobs from the queue and
synthesizes audio chunks. Multiple worker instances may run against the same
queue; jobs are idempotent so at-least-once delivery is safe.

The worker stops pulling new jobs on SIGINT/SIGTERM; in-flight jobs are left
to redelivery.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()
		slog.SetDefault(logger)

		cm, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := store.NewDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}

		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("storyvox-worker"))
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("jetstream context: %w", err)
		}

		objects, err := buildObjectStore(cfg, js)
		if err != nil {
			return err
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		if err := registry.LoadFromConfig(cfg.ToProviderRegistryConfig()); err != nil {
			return fmt.Errorf("load providers: %w", err)
		}
		llm, err := registry.GetLLM("")
		if err != nil {
			logger.Warn("no LLM provider configured, classification runs lexical-only", "error", err)
			llm = nil
		}
		voices.VerifyPools(ctx, registry, logger)

		// Hot reload re-registers providers so key rotations and rate-limit
		// changes land without a restart.
		cm.OnChange(func(updated *config.Config) {
			if err := registry.LoadFromConfig(updated.ToProviderRegistryConfig()); err != nil {
				logger.Error("reload providers from config", "error", err)
				return
			}
			logger.Info("providers reloaded", "tts_providers", registry.ListTTS())
		})
		cm.WatchConfig()

		q, err := queue.New(js, queue.Config{
			Stream:  cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
			Durable: cfg.NATS.Durable,
		}, logger)
		if err != nil {
			return err
		}

		processor := worker.NewProcessor(worker.ProcessorConfig{
			Store:       store.NewService(db),
			Objects:     objects,
			TTS:         registry,
			LLM:         llm,
			Cache:       voices.NewCache(),
			Retry:       worker.RetryPolicy{Attempts: uint(cfg.Worker.RetryAttempts), Delay: cfg.Worker.RetryDelay},
			Concurrency: cfg.Worker.ChunkConcurrency,
			CoverageMin: cfg.Segmentation.ChunkCoverageMin,
			Logger:      logger,
		})

		logger.Info("worker started",
			"stream", cfg.NATS.Stream, "durable", cfg.NATS.Durable,
			"tts_providers", registry.ListTTS())
		return q.Consume(ctx, processor.ProcessChapter)
	},
}

func buildObjectStore(cfg *config.Config, js nats.JetStreamContext) (objectstore.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "fs":
		return objectstore.NewFSStore(cfg.Storage.Dir)
	case "", "nats":
		return objectstore.NewNATSStore(js, cfg.NATS.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
