package store

import (
	"context"
	"encoding/json"
	"fmt"
)

type BookRepo struct {
	db *DB
}

func NewBookRepo(db *DB) *BookRepo {
	return &BookRepo{db: db}
}

func (r *BookRepo) Get(ctx context.Context, id string) (*Book, error) {
	var b Book
	var assignments []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT id, title, tts_provider, narrator_voice_id, total_chapters, completed_chapters, audio_complete, voice_assignments, assignments_provider
FROM books
WHERE id=$1`, id).Scan(
		&b.ID, &b.Title, &b.TTSProvider, &b.NarratorVoiceID,
		&b.TotalChapters, &b.CompletedChapters, &b.AudioComplete, &assignments,
		&b.AssignmentsProvider,
	)
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	if len(assignments) > 0 {
		if err := json.Unmarshal(assignments, &b.VoiceAssignments); err != nil {
			return nil, fmt.Errorf("decode voice assignments for book %s: %w", id, err)
		}
	}
	return &b, nil
}

func (r *BookRepo) Create(ctx context.Context, b *Book) error {
	assignments, err := json.Marshal(orEmpty(b.VoiceAssignments))
	if err != nil {
		return fmt.Errorf("encode voice assignments: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO books (id, title, tts_provider, narrator_voice_id, total_chapters, completed_chapters, audio_complete, voice_assignments, assignments_provider)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Title, b.TTSProvider, b.NarratorVoiceID,
		b.TotalChapters, b.CompletedChapters, b.AudioComplete, assignments,
		b.AssignmentsProvider,
	)
	if err != nil {
		return fmt.Errorf("create book %s: %w", b.ID, err)
	}
	return nil
}

// UpdateProgress persists the completion rollup for a book.
func (r *BookRepo) UpdateProgress(ctx context.Context, id string, completed, total int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE books SET completed_chapters=$2, total_chapters=$3 WHERE id=$1`,
		id, completed, total)
	if err != nil {
		return fmt.Errorf("update progress for book %s: %w", id, err)
	}
	return nil
}

// MarkAudioComplete flips audio_complete to true. The flip is one-way: the
// guard clause means a book already complete is left untouched, and nothing
// here ever sets the flag back to false.
func (r *BookRepo) MarkAudioComplete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE books SET audio_complete=TRUE WHERE id=$1 AND audio_complete=FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark book %s audio complete: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SaveVoiceAssignments persists the character-to-voice map so casting
// survives process restarts. The provider the voices belong to is recorded
// alongside them; restoring under a different provider re-maps by style.
func (r *BookRepo) SaveVoiceAssignments(ctx context.Context, id, provider string, assignments map[string]string) error {
	data, err := json.Marshal(orEmpty(assignments))
	if err != nil {
		return fmt.Errorf("encode voice assignments: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
UPDATE books SET voice_assignments=$2, assignments_provider=$3 WHERE id=$1`, id, data, provider)
	if err != nil {
		return fmt.Errorf("save voice assignments for book %s: %w", id, err)
	}
	return nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
