package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"storyvox/internal/config"
	"storyvox/internal/queue"
	"storyvox/internal/segment"
	"storyvox/internal/store"
	"storyvox/internal/worker"
)

var regenUserID string

var regenCmd = &cobra.Command{
	Use:   "regen <chapter-id>",
	Short: "Regenerate a chapter's audio from scratch",
	Long: `Regen deletes a chapter's chunks and their audio objects, then enqueues a
fresh synthesis job. Use it to retry a chapter with persistent errors or to
pick up changed voice settings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()
		chapterID := args[0]

		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := store.NewDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("storyvox-regen"))
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

		processor := worker.NewProcessor(worker.ProcessorConfig{
			Store:   store.NewService(db),
			Objects: objects,
			Logger:  logger,
		})
		if err := processor.Regenerate(ctx, chapterID); err != nil {
			return err
		}

		q, err := queue.New(js, queue.Config{
			Stream:  cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
			Durable: cfg.NATS.Durable,
		}, logger)
		if err != nil {
			return err
		}
		if err := q.Publish(ctx, queue.JobMessage{ChapterID: chapterID, UserID: regenUserID}); err != nil {
			return err
		}
		logger.Info("regeneration job enqueued", "chapter_id", chapterID)
		return nil
	},
}

func init() {
	regenCmd.Flags().StringVar(&regenUserID, "user-id", "", "user to attribute the job to")
}

func heuristicsFromConfig(sc config.SegmentationConfig) segment.Heuristics {
	heur := segment.DefaultHeuristics()
	if sc.MaxHeadingLength > 0 {
		heur.MaxHeadingLength = sc.MaxHeadingLength
	}
	if sc.IsolationLineMax > 0 {
		heur.IsolationLineMax = sc.IsolationLineMax
	}
	if sc.CollapseDistance > 0 {
		heur.CollapseDistance = sc.CollapseDistance
	}
	if sc.MinChapterChars > 0 {
		heur.MinChapterChars = sc.MinChapterChars
	}
	if sc.MinChapterWords > 0 {
		heur.MinChapterWords = sc.MinChapterWords
	}
	if sc.LeadingNoiseLines > 0 {
		heur.LeadingNoiseLines = sc.LeadingNoiseLines
	}
	if sc.FallbackSkipLines > 0 {
		heur.FallbackSkipLines = sc.FallbackSkipLines
	}
	if sc.CoverageWarnRatio > 0 {
		heur.CoverageWarnRatio = sc.CoverageWarnRatio
	}
	return heur
}
