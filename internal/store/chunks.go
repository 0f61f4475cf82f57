package store

import (
	"context"
	"fmt"
)

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) ListByChapter(ctx context.Context, chapterID string) ([]AudioChunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, chapter_id, idx, voice, provider, text, emotion, status, audio_url, duration_seconds, error_message
FROM audio_chunks
WHERE chapter_id=$1
ORDER BY idx ASC`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("list chunks for chapter %s: %w", chapterID, err)
	}
	defer rows.Close()

	var out []AudioChunk
	for rows.Next() {
		var c AudioChunk
		if err := rows.Scan(&c.ID, &c.ChapterID, &c.Idx, &c.Voice, &c.Provider, &c.Text,
			&c.Emotion, &c.Status, &c.AudioURL, &c.DurationSeconds, &c.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// InsertBatch creates the chunk rows for a chapter's first processing pass.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []AudioChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx insert chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO audio_chunks (id, chapter_id, idx, voice, provider, text, emotion, status, audio_url, duration_seconds, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, c.ChapterID, c.Idx, c.Voice, c.Provider, c.Text, c.Emotion,
			c.Status, c.AudioURL, c.DurationSeconds, c.ErrorMessage)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Idx, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// TransitionStatus moves a chunk from an expected status to the next one.
// The WHERE guard is the optimistic-concurrency check: it reports false when
// another worker already moved the chunk.
func (r *ChunkRepo) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE audio_chunks SET status=$3 WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("transition chunk %s %s->%s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDone records a successful synthesis, clearing any prior error message.
func (r *ChunkRepo) MarkDone(ctx context.Context, id, audioURL string, durationSeconds float64) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE audio_chunks
SET status=$2, audio_url=$3, duration_seconds=$4, error_message=''
WHERE id=$1`, id, StatusDone, audioURL, durationSeconds)
	if err != nil {
		return fmt.Errorf("mark chunk %s done: %w", id, err)
	}
	return nil
}

// MarkError records an exhausted-retries failure.
func (r *ChunkRepo) MarkError(ctx context.Context, id, message string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE audio_chunks SET status=$2, error_message=$3 WHERE id=$1`,
		id, StatusError, message)
	if err != nil {
		return fmt.Errorf("mark chunk %s error: %w", id, err)
	}
	return nil
}

// DeleteByChapter wipes a chapter's chunks for regeneration.
func (r *ChunkRepo) DeleteByChapter(ctx context.Context, chapterID string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM audio_chunks WHERE chapter_id=$1`, chapterID)
	if err != nil {
		return fmt.Errorf("delete chunks for chapter %s: %w", chapterID, err)
	}
	return nil
}

// CountStatuses returns the per-chapter status rollup. Processing chunks are
// counted as pending; from a reporting standpoint they are not finished.
func (r *ChunkRepo) CountStatuses(ctx context.Context, chapterID string) (StatusCounts, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT status, COUNT(*) FROM audio_chunks WHERE chapter_id=$1 GROUP BY status`, chapterID)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count chunk statuses for chapter %s: %w", chapterID, err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, fmt.Errorf("scan status count: %w", err)
		}
		switch status {
		case StatusDone:
			counts.Done = n
		case StatusError:
			counts.Error = n
		default:
			counts.Pending += n
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

// CompletedChapterCount returns how many of a book's chapters have every
// chunk done. Chapters with no chunk rows yet do not count.
func (r *ChunkRepo) CompletedChapterCount(ctx context.Context, bookID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
SELECT COUNT(*) FROM chapters c
WHERE c.book_id=$1
  AND EXISTS (SELECT 1 FROM audio_chunks ch WHERE ch.chapter_id=c.id)
  AND NOT EXISTS (SELECT 1 FROM audio_chunks ch WHERE ch.chapter_id=c.id AND ch.status <> $2)`,
		bookID, StatusDone).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed chapters for book %s: %w", bookID, err)
	}
	return n, nil
}
