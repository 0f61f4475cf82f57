package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"storyvox/internal/ingest"
	"storyvox/internal/providers"
	"storyvox/internal/queue"
	"storyvox/internal/segment"
	"storyvox/internal/store"
)

var (
	extractBookID   string
	extractTitle    string
	extractProvider string
	extractNarrator string
	extractEnqueue  bool
	extractUserID   string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract chapters from a source file into the database",
	Long: `Extract reads a PDF or plain text file, recovers its chapter structure
and stores the chapters. Re-running replaces the book's prior chapter set.

With --enqueue, a synthesis job is published for every extracted chapter.

Examples:
  storyvox extract book.pdf --title "The Long Winter"
  storyvox extract book.txt --book-id 4f1f... --enqueue`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		doc, err := ingest.Extract(args[0])
		if err != nil {
			return err
		}
		logger.Info("source extracted", "chars", len(doc.Text), "pages", doc.Pages)

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		if err := registry.LoadFromConfig(cfg.ToProviderRegistryConfig()); err != nil {
			return fmt.Errorf("load providers: %w", err)
		}
		llm, err := registry.GetLLM("")
		if err != nil {
			logger.Warn("no LLM provider, AI chapter fallback disabled", "error", err)
			llm = nil
		}

		detector := segment.NewDetector(llm, heuristicsFromConfig(cfg.Segmentation), logger)
		chapters := detector.DetectChapters(ctx, doc.Text)
		logger.Info("chapters detected", "count", len(chapters))

		db, err := store.NewDB(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		svc := store.NewService(db)

		bookID := extractBookID
		if bookID == "" {
			bookID = uuid.NewString()
			book := &store.Book{
				ID:              bookID,
				Title:           extractTitle,
				TTSProvider:     extractProvider,
				NarratorVoiceID: extractNarrator,
			}
			if err := svc.Books.Create(ctx, book); err != nil {
				return err
			}
			logger.Info("book created", "book_id", bookID)
		}

		rows := make([]store.Chapter, 0, len(chapters))
		for _, ch := range chapters {
			rows = append(rows, store.Chapter{
				ID:     uuid.NewString(),
				BookID: bookID,
				Index:  ch.Index,
				Title:  ch.Title,
				Text:   ch.Text,
			})
		}
		if err := svc.Chapters.Replace(ctx, bookID, rows); err != nil {
			return err
		}
		for _, ch := range rows {
			fmt.Printf("%3d  %s  (%d chars)\n", ch.Index, ch.Title, len(ch.Text))
		}

		if !extractEnqueue {
			return nil
		}

		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("storyvox-extract"))
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			return fmt.Errorf("jetstream context: %w", err)
		}
		q, err := queue.New(js, queue.Config{
			Stream:  cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
			Durable: cfg.NATS.Durable,
		}, logger)
		if err != nil {
			return err
		}
		for _, ch := range rows {
			if err := q.Publish(ctx, queue.JobMessage{ChapterID: ch.ID, UserID: extractUserID}); err != nil {
				return err
			}
		}
		logger.Info("jobs enqueued", "count", len(rows))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractBookID, "book-id", "", "existing book to re-extract (default: create a new book)")
	extractCmd.Flags().StringVar(&extractTitle, "title", "", "title for a newly created book")
	extractCmd.Flags().StringVar(&extractProvider, "provider", "elevenlabs", "TTS provider for a newly created book")
	extractCmd.Flags().StringVar(&extractNarrator, "narrator-voice", "21m00Tcm4TlvDq8ikWAM", "narrator voice ID for a newly created book")
	extractCmd.Flags().BoolVar(&extractEnqueue, "enqueue", false, "publish a synthesis job per chapter")
	extractCmd.Flags().StringVar(&extractUserID, "user-id", "", "user to attribute enqueued jobs to")
}
