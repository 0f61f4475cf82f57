// Package worker consumes chapter jobs and drives chunk synthesis.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyvox/internal/objectstore"
	"storyvox/internal/providers"
	"storyvox/internal/queue"
	"storyvox/internal/store"
	"storyvox/internal/structure"
	"storyvox/internal/voices"
)

// narrationWPM is the assumed speaking rate for duration estimates.
const narrationWPM = 150

// Store is the persistence surface the processor needs. *store.Service
// implements it; tests substitute an in-memory fake.
type Store interface {
	GetBook(ctx context.Context, id string) (*store.Book, error)
	GetChapter(ctx context.Context, id string) (*store.Chapter, error)
	ListChunks(ctx context.Context, chapterID string) ([]store.AudioChunk, error)
	InsertChunks(ctx context.Context, chunks []store.AudioChunk) error
	TransitionChunk(ctx context.Context, id, from, to string) (bool, error)
	MarkChunkDone(ctx context.Context, id, audioURL string, durationSeconds float64) error
	MarkChunkError(ctx context.Context, id, message string) error
	DeleteChunks(ctx context.Context, chapterID string) error
	CountChunkStatuses(ctx context.Context, chapterID string) (store.StatusCounts, error)
	CompletedChapterCount(ctx context.Context, bookID string) (int, error)
	UpdateBookProgress(ctx context.Context, bookID string, completed, total int) error
	MarkBookAudioComplete(ctx context.Context, bookID string) (bool, error)
	SaveVoiceAssignments(ctx context.Context, bookID, provider string, assignments map[string]string) error
}

// TTSSource resolves a provider name to a client and enforces its rate
// limit. *providers.Registry implements it.
type TTSSource interface {
	GetTTS(name string) (providers.TTSProvider, error)
	WaitForTTS(ctx context.Context, name string) error
	RecordRateLimit(name string, retryAfter time.Duration)
}

// Processor runs one chapter job end to end.
type Processor struct {
	store       Store
	objects     objectstore.ObjectStore
	tts         TTSSource
	llm         providers.LLMClient
	cache       *voices.Cache
	structurer  *structure.Structurer
	retry       RetryPolicy
	concurrency int
	logger      *slog.Logger
}

// ProcessorConfig wires a processor.
type ProcessorConfig struct {
	Store       Store
	Objects     objectstore.ObjectStore
	TTS         TTSSource
	LLM         providers.LLMClient // May be nil; structuring then runs lexical-only
	Cache       *voices.Cache
	Retry       RetryPolicy
	Concurrency int     // Concurrent synthesis calls per job
	CoverageMin float64 // Chunk text coverage warning threshold
	Logger      *slog.Logger
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = voices.NewCache()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}
	return &Processor{
		store:       cfg.Store,
		objects:     cfg.Objects,
		tts:         cfg.TTS,
		llm:         cfg.LLM,
		cache:       cache,
		structurer:  structure.NewStructurer(cfg.LLM, cfg.CoverageMin, logger),
		retry:       cfg.Retry,
		concurrency: concurrency,
		logger:      logger.With("component", "worker"),
	}
}

// ProcessChapter handles one chapter job. Chunk-local failures never abort
// the job; the chapter finishes with a status rollup either way.
func (p *Processor) ProcessChapter(ctx context.Context, job queue.JobMessage) error {
	logger := p.logger.With("chapter_id", job.ChapterID)

	chapter, err := p.store.GetChapter(ctx, job.ChapterID)
	if err != nil {
		return fmt.Errorf("load chapter: %w", err)
	}
	book, err := p.store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return fmt.Errorf("load book: %w", err)
	}

	provider, err := p.tts.GetTTS(book.TTSProvider)
	if err != nil {
		return fmt.Errorf("resolve TTS provider: %w", err)
	}

	chunks, err := p.store.ListChunks(ctx, chapter.ID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		chunks, err = p.createChunks(ctx, book, chapter)
		if err != nil {
			return fmt.Errorf("create chunks: %w", err)
		}
	} else {
		logger.Info("resuming chapter", "existing_chunks", len(chunks))
	}

	var pending []store.AudioChunk
	for _, c := range chunks {
		if c.Status != store.StatusDone {
			pending = append(pending, c)
		}
	}

	p.synthesize(ctx, provider, book, pending)

	counts, err := p.store.CountChunkStatuses(ctx, chapter.ID)
	if err != nil {
		return fmt.Errorf("count chunk statuses: %w", err)
	}
	logger.Info("chapter finished",
		"done", counts.Done, "error", counts.Error, "pending", counts.Pending)

	if err := p.updateBookProgress(ctx, book.ID); err != nil {
		return fmt.Errorf("update book progress: %w", err)
	}
	return nil
}

// createChunks runs structuring and voice assignment for a chapter's first
// processing pass. Character detection lives inside the casting build so it
// runs once per book lifetime, not once per chapter.
func (p *Processor) createChunks(ctx context.Context, book *store.Book, chapter *store.Chapter) ([]store.AudioChunk, error) {
	build := func() *voices.Casting {
		a := voices.NewAssigner(book.TTSProvider, book.NarratorVoiceID, p.logger)
		a.RestoreFrom(book.AssignmentsProvider, book.VoiceAssignments)
		return &voices.Casting{
			Assigner:   a,
			Characters: structure.DetectCharacters(ctx, p.llm, chapter.Text, p.logger),
		}
	}
	casting := p.cache.ForBook(book.ID, build)
	if casting.Assigner.Provider() != book.TTSProvider {
		// The book moved to another provider since this casting was built.
		p.cache.Invalidate(book.ID)
		casting = p.cache.ForBook(book.ID, build)
	}
	assigner := casting.Assigner

	specs := p.structurer.Structure(ctx, chapter.Text, casting.Characters)

	byName := make(map[string]*structure.Character, len(casting.Characters))
	for i := range casting.Characters {
		byName[strings.ToLower(casting.Characters[i].Name)] = &casting.Characters[i]
	}

	chunks := make([]store.AudioChunk, 0, len(specs))
	for _, spec := range specs {
		char := byName[strings.ToLower(spec.Voice)]
		chunks = append(chunks, store.AudioChunk{
			ID:        uuid.NewString(),
			ChapterID: chapter.ID,
			Idx:       spec.Idx,
			Voice:     assigner.VoiceFor(spec.Voice, char),
			Provider:  book.TTSProvider,
			Text:      spec.Text,
			Emotion:   spec.Emotion,
			Status:    store.StatusPending,
		})
	}

	if err := p.store.InsertChunks(ctx, chunks); err != nil {
		return nil, err
	}
	if err := p.store.SaveVoiceAssignments(ctx, book.ID, book.TTSProvider, assigner.Assignments()); err != nil {
		p.logger.Warn("persist voice assignments", "book_id", book.ID, "error", err)
	}
	return chunks, nil
}

// synthesize processes chunks in fixed-size concurrent batches. Batch
// boundaries bound how many synthesis calls are in flight at once.
func (p *Processor) synthesize(ctx context.Context, provider providers.TTSProvider, book *store.Book, chunks []store.AudioChunk) {
	for start := 0; start < len(chunks); start += p.concurrency {
		end := start + p.concurrency
		if end > len(chunks) {
			end = len(chunks)
		}

		var wg sync.WaitGroup
		for _, chunk := range chunks[start:end] {
			wg.Add(1)
			go func(chunk store.AudioChunk) {
				defer wg.Done()
				p.processChunk(ctx, provider, book, chunk)
			}(chunk)
		}
		wg.Wait()
	}
}

// processChunk moves one chunk through processing to a terminal status.
func (p *Processor) processChunk(ctx context.Context, provider providers.TTSProvider, book *store.Book, chunk store.AudioChunk) {
	logger := p.logger.With("chunk_id", chunk.ID, "idx", chunk.Idx)

	claimed, err := p.store.TransitionChunk(ctx, chunk.ID, chunk.Status, store.StatusProcessing)
	if err != nil {
		logger.Error("claim chunk", "error", err)
		return
	}
	if !claimed {
		// Another worker holds this chunk.
		logger.Debug("chunk already claimed, skipping")
		return
	}

	var audioURL string
	synthErr := p.retry.Do(ctx, func() error {
		if err := p.tts.WaitForTTS(ctx, provider.Name()); err != nil {
			return err
		}
		result, err := provider.Generate(ctx, &providers.TTSRequest{
			Text:    chunk.Text,
			Voice:   chunk.Voice,
			Format:  "mp3_44100_128",
			Emotion: chunk.Emotion,
		})
		if err != nil {
			if rle, ok := providers.IsRateLimitError(err); ok {
				// Drain the limiter so sibling chunks back off too.
				p.tts.RecordRateLimit(provider.Name(), rle.RetryAfter)
			}
			return err
		}
		url, err := p.objects.Upload(ctx, objectstore.ChunkKey(chunk.ChapterID, chunk.Idx), result.Audio)
		if err != nil {
			return fmt.Errorf("upload audio: %w", err)
		}
		audioURL = url
		return nil
	})

	if synthErr != nil {
		logger.Warn("chunk failed after retries", "error", synthErr)
		if err := p.store.MarkChunkError(ctx, chunk.ID, synthErr.Error()); err != nil {
			logger.Error("mark chunk error", "error", err)
		}
		return
	}

	if err := p.store.MarkChunkDone(ctx, chunk.ID, audioURL, estimateDurationSeconds(chunk.Text)); err != nil {
		logger.Error("mark chunk done", "error", err)
	}
}

// updateBookProgress recomputes the completion rollup and flips the
// audio-complete flag when the last chapter lands. The flip is one-way.
func (p *Processor) updateBookProgress(ctx context.Context, bookID string) error {
	book, err := p.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	completed, err := p.store.CompletedChapterCount(ctx, bookID)
	if err != nil {
		return err
	}
	if err := p.store.UpdateBookProgress(ctx, bookID, completed, book.TotalChapters); err != nil {
		return err
	}

	if book.TotalChapters > 0 && completed == book.TotalChapters {
		flipped, err := p.store.MarkBookAudioComplete(ctx, bookID)
		if err != nil {
			return err
		}
		if flipped {
			p.logger.Info("book audio complete", "book_id", bookID,
				"chapters", book.TotalChapters)
		}
	}
	return nil
}

// Regenerate wipes a chapter's chunks and their audio objects so the next
// job rebuilds everything from scratch.
func (p *Processor) Regenerate(ctx context.Context, chapterID string) error {
	chunks, err := p.store.ListChunks(ctx, chapterID)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	for _, c := range chunks {
		if err := p.objects.Delete(ctx, objectstore.ChunkKey(chapterID, c.Idx)); err != nil {
			p.logger.Warn("delete audio object", "chunk_id", c.ID, "error", err)
		}
	}
	if err := p.store.DeleteChunks(ctx, chapterID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	p.logger.Info("chapter regenerated", "chapter_id", chapterID, "chunks_wiped", len(chunks))
	return nil
}

// estimateDurationSeconds assumes a narrationWPM speaking rate.
func estimateDurationSeconds(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) * 60.0 / narrationWPM
}
