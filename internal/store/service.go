package store

import "context"

// Service bundles the repositories behind the persistence surface the worker
// consumes.
type Service struct {
	Books    *BookRepo
	Chapters *ChapterRepo
	Chunks   *ChunkRepo
}

func NewService(db *DB) *Service {
	return &Service{
		Books:    NewBookRepo(db),
		Chapters: NewChapterRepo(db),
		Chunks:   NewChunkRepo(db),
	}
}

func (s *Service) GetBook(ctx context.Context, id string) (*Book, error) {
	return s.Books.Get(ctx, id)
}

func (s *Service) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	return s.Chapters.Get(ctx, id)
}

func (s *Service) ListChunks(ctx context.Context, chapterID string) ([]AudioChunk, error) {
	return s.Chunks.ListByChapter(ctx, chapterID)
}

func (s *Service) InsertChunks(ctx context.Context, chunks []AudioChunk) error {
	return s.Chunks.InsertBatch(ctx, chunks)
}

func (s *Service) TransitionChunk(ctx context.Context, id, from, to string) (bool, error) {
	return s.Chunks.TransitionStatus(ctx, id, from, to)
}

func (s *Service) MarkChunkDone(ctx context.Context, id, audioURL string, durationSeconds float64) error {
	return s.Chunks.MarkDone(ctx, id, audioURL, durationSeconds)
}

func (s *Service) MarkChunkError(ctx context.Context, id, message string) error {
	return s.Chunks.MarkError(ctx, id, message)
}

func (s *Service) DeleteChunks(ctx context.Context, chapterID string) error {
	return s.Chunks.DeleteByChapter(ctx, chapterID)
}

func (s *Service) CountChunkStatuses(ctx context.Context, chapterID string) (StatusCounts, error) {
	return s.Chunks.CountStatuses(ctx, chapterID)
}

func (s *Service) CompletedChapterCount(ctx context.Context, bookID string) (int, error) {
	return s.Chunks.CompletedChapterCount(ctx, bookID)
}

func (s *Service) UpdateBookProgress(ctx context.Context, bookID string, completed, total int) error {
	return s.Books.UpdateProgress(ctx, bookID, completed, total)
}

func (s *Service) MarkBookAudioComplete(ctx context.Context, bookID string) (bool, error) {
	return s.Books.MarkAudioComplete(ctx, bookID)
}

func (s *Service) SaveVoiceAssignments(ctx context.Context, bookID, provider string, assignments map[string]string) error {
	return s.Books.SaveVoiceAssignments(ctx, bookID, provider, assignments)
}
