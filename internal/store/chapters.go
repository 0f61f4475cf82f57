package store

import (
	"context"
	"fmt"
)

type ChapterRepo struct {
	db *DB
}

func NewChapterRepo(db *DB) *ChapterRepo {
	return &ChapterRepo{db: db}
}

func (r *ChapterRepo) Get(ctx context.Context, id string) (*Chapter, error) {
	var c Chapter
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, book_id, chapter_index, title, text
FROM chapters
WHERE id=$1`, id).Scan(&c.ID, &c.BookID, &c.Index, &c.Title, &c.Text)
	if err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, err)
	}
	return &c, nil
}

func (r *ChapterRepo) ListByBook(ctx context.Context, bookID string) ([]Chapter, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT id, book_id, chapter_index, title, text
FROM chapters
WHERE book_id=$1
ORDER BY chapter_index ASC`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters for book %s: %w", bookID, err)
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.BookID, &c.Index, &c.Title, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chapters: %w", err)
	}
	return out, nil
}

// Replace swaps a book's chapter set in one transaction. Extraction is
// idempotent through delete-then-insert: re-running it replaces any prior
// set, and cascading deletes remove the old chapters' chunks.
func (r *ChapterRepo) Replace(ctx context.Context, bookID string, chapters []Chapter) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chapters: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chapters WHERE book_id=$1`, bookID); err != nil {
		return fmt.Errorf("delete chapters for book %s: %w", bookID, err)
	}

	for _, c := range chapters {
		_, err := tx.Exec(ctx, `
INSERT INTO chapters (id, book_id, chapter_index, title, text)
VALUES ($1, $2, $3, $4, $5)`,
			c.ID, bookID, c.Index, c.Title, c.Text)
		if err != nil {
			return fmt.Errorf("insert chapter %d: %w", c.Index, err)
		}
	}

	if _, err := tx.Exec(ctx, `
UPDATE books SET total_chapters=$2, completed_chapters=0, audio_complete=FALSE WHERE id=$1`,
		bookID, len(chapters)); err != nil {
		return fmt.Errorf("reset book progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace chapters: %w", err)
	}
	return nil
}
