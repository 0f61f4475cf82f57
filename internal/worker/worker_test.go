package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storyvox/internal/providers"
	"storyvox/internal/queue"
	"storyvox/internal/store"
	"storyvox/internal/voices"
)

// fakeStore is an in-memory Store for processor tests.
type fakeStore struct {
	mu       sync.Mutex
	books    map[string]*store.Book
	chapters map[string]*store.Chapter
	chunks   map[string]*store.AudioChunk // by chunk ID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		books:    make(map[string]*store.Book),
		chapters: make(map[string]*store.Chapter),
		chunks:   make(map[string]*store.AudioChunk),
	}
}

func (f *fakeStore) GetBook(_ context.Context, id string) (*store.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return nil, fmt.Errorf("book %s not found", id)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeStore) GetChapter(_ context.Context, id string) (*store.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chapters[id]
	if !ok {
		return nil, fmt.Errorf("chapter %s not found", id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListChunks(_ context.Context, chapterID string) ([]store.AudioChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.AudioChunk
	for _, c := range f.chunks {
		if c.ChapterID == chapterID {
			out = append(out, *c)
		}
	}
	// Stable idx order.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Idx < out[i].Idx {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) InsertChunks(_ context.Context, chunks []store.AudioChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		copied := c
		f.chunks[c.ID] = &copied
	}
	return nil
}

func (f *fakeStore) TransitionChunk(_ context.Context, id, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chunks[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (f *fakeStore) MarkChunkDone(_ context.Context, id, audioURL string, durationSeconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chunks[id]
	c.Status = store.StatusDone
	c.AudioURL = audioURL
	c.DurationSeconds = durationSeconds
	c.ErrorMessage = ""
	return nil
}

func (f *fakeStore) MarkChunkError(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chunks[id]
	c.Status = store.StatusError
	c.ErrorMessage = message
	return nil
}

func (f *fakeStore) DeleteChunks(_ context.Context, chapterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.chunks {
		if c.ChapterID == chapterID {
			delete(f.chunks, id)
		}
	}
	return nil
}

func (f *fakeStore) CountChunkStatuses(_ context.Context, chapterID string) (store.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counts store.StatusCounts
	for _, c := range f.chunks {
		if c.ChapterID != chapterID {
			continue
		}
		switch c.Status {
		case store.StatusDone:
			counts.Done++
		case store.StatusError:
			counts.Error++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}

func (f *fakeStore) CompletedChapterCount(_ context.Context, bookID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	completed := 0
	for _, ch := range f.chapters {
		if ch.BookID != bookID {
			continue
		}
		total, done := 0, 0
		for _, c := range f.chunks {
			if c.ChapterID == ch.ID {
				total++
				if c.Status == store.StatusDone {
					done++
				}
			}
		}
		if total > 0 && total == done {
			completed++
		}
	}
	return completed, nil
}

func (f *fakeStore) UpdateBookProgress(_ context.Context, bookID string, completed, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.books[bookID]
	b.CompletedChapters = completed
	b.TotalChapters = total
	return nil
}

func (f *fakeStore) MarkBookAudioComplete(_ context.Context, bookID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.books[bookID]
	if b.AudioComplete {
		return false, nil
	}
	b.AudioComplete = true
	return true, nil
}

func (f *fakeStore) SaveVoiceAssignments(_ context.Context, bookID, provider string, assignments map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.books[bookID].VoiceAssignments = assignments
	f.books[bookID].AssignmentsProvider = provider
	return nil
}

// fakeObjects is an in-memory object store.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Upload(_ context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return "mem://" + key, nil
}

func (f *fakeObjects) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

// fakeTTSSource serves a single mock provider without rate limiting and
// records throttling feedback.
type fakeTTSSource struct {
	mu         sync.Mutex
	provider   providers.TTSProvider
	rateLimits []time.Duration
}

func (f *fakeTTSSource) GetTTS(string) (providers.TTSProvider, error) {
	return f.provider, nil
}

func (f *fakeTTSSource) WaitForTTS(context.Context, string) error {
	return nil
}

func (f *fakeTTSSource) RecordRateLimit(_ string, retryAfter time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateLimits = append(f.rateLimits, retryAfter)
}

const testChapterText = `The market square was empty at that hour.

"We leave at dawn," said Mira.

Nobody moved for a long moment.

The gates opened with the first light.`

func seedBookAndChapter(f *fakeStore) (bookID, chapterID string) {
	bookID, chapterID = "book-1", "chapter-1"
	f.books[bookID] = &store.Book{
		ID:              bookID,
		TTSProvider:     "mock",
		NarratorVoiceID: "mock-default",
		TotalChapters:   1,
	}
	f.chapters[chapterID] = &store.Chapter{
		ID:     chapterID,
		BookID: bookID,
		Index:  0,
		Title:  "Chapter 1",
		Text:   testChapterText,
	}
	return bookID, chapterID
}

func newTestProcessor(f *fakeStore, objects *fakeObjects, mock *providers.MockTTSProvider) *Processor {
	return NewProcessor(ProcessorConfig{
		Store:       f,
		Objects:     objects,
		TTS:         &fakeTTSSource{provider: mock},
		Retry:       RetryPolicy{Attempts: 3, Delay: 0},
		Concurrency: 3,
	})
}

func TestProcessChapterFirstPass(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	bookID, chapterID := seedBookAndChapter(f)

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	chunks, _ := f.ListChunks(context.Background(), chapterID)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Idx != i {
			t.Errorf("chunk %d has idx %d", i, c.Idx)
		}
		if c.Status != store.StatusDone {
			t.Errorf("chunk %d status %q", i, c.Status)
		}
		if c.AudioURL == "" || c.DurationSeconds <= 0 {
			t.Errorf("chunk %d missing audio metadata: %+v", i, c)
		}
	}
	if len(objects.objects) != 4 {
		t.Fatalf("expected 4 uploaded objects, got %d", len(objects.objects))
	}

	book, _ := f.GetBook(context.Background(), bookID)
	if book.CompletedChapters != 1 || !book.AudioComplete {
		t.Fatalf("book rollup wrong: %+v", book)
	}
}

func TestProcessChapterResumeSkipsDone(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	_, chapterID := seedBookAndChapter(f)

	// Pre-existing chunk rows: two done, one error, one pending.
	statuses := []string{store.StatusDone, store.StatusDone, store.StatusError, store.StatusPending}
	for i, status := range statuses {
		f.chunks[fmt.Sprintf("c%d", i)] = &store.AudioChunk{
			ID: fmt.Sprintf("c%d", i), ChapterID: chapterID, Idx: i,
			Voice: "mock-default", Provider: "mock",
			Text: "Some chunk text to narrate.", Status: status,
			AudioURL: "mem://old", DurationSeconds: 1,
		}
	}

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	if got := mock.CallCount(); got != 2 {
		t.Fatalf("expected 2 synthesis calls for non-done chunks, got %d", got)
	}
	chunks, _ := f.ListChunks(context.Background(), chapterID)
	for _, c := range chunks {
		if c.Status != store.StatusDone {
			t.Fatalf("chunk %d not done after resume: %+v", c.Idx, c)
		}
	}
	// Done chunks keep their original audio.
	if chunks[0].AudioURL != "mem://old" {
		t.Fatalf("done chunk was reprocessed: %+v", chunks[0])
	}
	if chunks[2].ErrorMessage != "" {
		t.Fatalf("retried error chunk kept its message: %+v", chunks[2])
	}
}

func TestProcessChapterRetryExhaustion(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	bookID, chapterID := seedBookAndChapter(f)

	f.chunks["c0"] = &store.AudioChunk{
		ID: "c0", ChapterID: chapterID, Idx: 0,
		Voice: "mock-default", Provider: "mock",
		Text: "Failing chunk text.", Status: store.StatusPending,
	}
	f.chunks["c1"] = &store.AudioChunk{
		ID: "c1", ChapterID: chapterID, Idx: 1,
		Voice: "mock-default", Provider: "mock",
		Text: "Healthy chunk text.", Status: store.StatusPending,
	}

	// Concurrency 1 makes failure consumption deterministic: all three
	// attempts of chunk 0 run before chunk 1 starts.
	failure := errors.New("synthesis exploded")
	mock.Failures = []error{failure, failure, failure}
	p := NewProcessor(ProcessorConfig{
		Store:       f,
		Objects:     objects,
		TTS:         &fakeTTSSource{provider: mock},
		Retry:       RetryPolicy{Attempts: 3, Delay: 0},
		Concurrency: 1,
	})

	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	chunks, _ := f.ListChunks(context.Background(), chapterID)
	if chunks[0].Status != store.StatusError || chunks[0].ErrorMessage == "" {
		t.Fatalf("exhausted chunk not marked error: %+v", chunks[0])
	}
	if chunks[1].Status != store.StatusDone {
		t.Fatalf("healthy chunk should still complete: %+v", chunks[1])
	}
	if got := mock.CallCount(); got != 4 {
		t.Fatalf("expected 3 failed attempts + 1 success, got %d calls", got)
	}

	book, _ := f.GetBook(context.Background(), bookID)
	if book.AudioComplete {
		t.Fatal("book must not be audio-complete with an error chunk")
	}
}

func TestProcessChapterRetryRecovers(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	_, chapterID := seedBookAndChapter(f)

	f.chunks["c0"] = &store.AudioChunk{
		ID: "c0", ChapterID: chapterID, Idx: 0,
		Voice: "mock-default", Provider: "mock",
		Text: "Flaky chunk text.", Status: store.StatusPending,
	}
	mock.Failures = []error{errors.New("blip"), errors.New("blip")}

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	chunks, _ := f.ListChunks(context.Background(), chapterID)
	if chunks[0].Status != store.StatusDone {
		t.Fatalf("chunk should recover on third attempt: %+v", chunks[0])
	}
	if got := mock.CallCount(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRegenerateWipesChunksAndAudio(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	_, chapterID := seedBookAndChapter(f)

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}
	if len(objects.objects) == 0 {
		t.Fatal("setup: no audio uploaded")
	}

	if err := p.Regenerate(context.Background(), chapterID); err != nil {
		t.Fatal(err)
	}
	chunks, _ := f.ListChunks(context.Background(), chapterID)
	if len(chunks) != 0 {
		t.Fatalf("chunks not wiped: %d remain", len(chunks))
	}
	if len(objects.objects) != 0 {
		t.Fatalf("audio objects not wiped: %d remain", len(objects.objects))
	}
}

func TestProviderSwitchTranslatesAssignments(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	bookID, chapterID := seedBookAndChapter(f)

	// The book was previously narrated on ElevenLabs; the persisted cast
	// carries that pool's raw voice IDs.
	b := f.books[bookID]
	b.TTSProvider = "openai"
	b.NarratorVoiceID = "onyx"
	b.AssignmentsProvider = "elevenlabs"
	b.VoiceAssignments = map[string]string{
		"mira":        "EXAVITQu4vr4xnSDxMaL",
		"the captain": "pNInz6obpgDQGcFmaJgB",
	}

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	book, _ := f.GetBook(context.Background(), bookID)
	if book.AssignmentsProvider != "openai" {
		t.Fatalf("assignments provider not updated: %q", book.AssignmentsProvider)
	}
	inPool := func(id string) bool {
		for _, v := range voices.PoolFor("openai") {
			if v.ID == id {
				return true
			}
		}
		return false
	}
	for name, old := range map[string]string{
		"mira":        "EXAVITQu4vr4xnSDxMaL",
		"the captain": "pNInz6obpgDQGcFmaJgB",
	} {
		got := book.VoiceAssignments[name]
		if got == old {
			t.Fatalf("%s kept the old provider's voice ID %q", name, got)
		}
		if !inPool(got) {
			t.Fatalf("%s re-mapped outside the target pool: %q", name, got)
		}
	}
	if book.VoiceAssignments["mira"] == book.VoiceAssignments["the captain"] {
		t.Fatal("characters collapsed onto one voice after the provider switch")
	}
}

func TestProviderSwitchRebuildsCachedCasting(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	bookID, chapterID := seedBookAndChapter(f)

	p := newTestProcessor(f, objects, mock)
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	// Switch the book's provider and regenerate; the same processor holds a
	// warm casting for the old provider.
	f.mu.Lock()
	f.books[bookID].TTSProvider = "openai"
	f.books[bookID].NarratorVoiceID = "onyx"
	f.mu.Unlock()
	if err := p.Regenerate(context.Background(), chapterID); err != nil {
		t.Fatal(err)
	}
	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	chunks, _ := f.ListChunks(context.Background(), chapterID)
	if len(chunks) == 0 {
		t.Fatal("no chunks rebuilt after regeneration")
	}
	for _, c := range chunks {
		if c.Provider != "openai" {
			t.Fatalf("chunk kept the old provider: %+v", c)
		}
		if c.Voice == "mock-default" {
			t.Fatalf("chunk kept the old provider's narrator voice: %+v", c)
		}
	}
}

func TestCharacterDetectionRunsOncePerBook(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	bookID, chapterID := seedBookAndChapter(f)
	f.books[bookID].TotalChapters = 2
	f.chapters["chapter-2"] = &store.Chapter{
		ID:     "chapter-2",
		BookID: bookID,
		Index:  1,
		Title:  "Chapter 2",
		Text:   testChapterText,
	}

	llm := &providers.MockLLMClient{Err: errors.New("llm offline")}
	p := NewProcessor(ProcessorConfig{
		Store:       f,
		Objects:     objects,
		TTS:         &fakeTTSSource{provider: mock},
		LLM:         llm,
		Retry:       RetryPolicy{Attempts: 3, Delay: 0},
		Concurrency: 3,
	})

	for _, id := range []string{chapterID, "chapter-2"} {
		if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: id}); err != nil {
			t.Fatal(err)
		}
	}

	// Chapter 1 makes one detection call and one classification call. The
	// second chapter reuses the book's cast, leaving only classification.
	if got := len(llm.Requests); got != 3 {
		t.Fatalf("expected 3 LLM calls across 2 chapters, got %d", got)
	}
}

func TestRateLimitedChunkFeedsLimiter(t *testing.T) {
	f := newFakeStore()
	objects := newFakeObjects()
	mock := providers.NewMockTTSProvider("mock")
	_, chapterID := seedBookAndChapter(f)

	mock.Failures = []error{
		&providers.RateLimitError{Provider: "mock", RetryAfter: 7 * time.Second, StatusCode: 429},
	}
	src := &fakeTTSSource{provider: mock}
	p := NewProcessor(ProcessorConfig{
		Store:       f,
		Objects:     objects,
		TTS:         src,
		Retry:       RetryPolicy{Attempts: 3, Delay: 0},
		Concurrency: 1,
	})

	if err := p.ProcessChapter(context.Background(), queue.JobMessage{ChapterID: chapterID}); err != nil {
		t.Fatal(err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.rateLimits) != 1 {
		t.Fatalf("expected 1 rate-limit feedback call, got %d", len(src.rateLimits))
	}
	if src.rateLimits[0] != 7*time.Second {
		t.Fatalf("retry-after not propagated: %v", src.rateLimits[0])
	}
	chunks, _ := f.ListChunks(context.Background(), chapterID)
	for _, c := range chunks {
		if c.Status != store.StatusDone {
			t.Fatalf("chunk %d not done after throttled retry: %+v", c.Idx, c)
		}
	}
}

func TestEstimateDurationSeconds(t *testing.T) {
	var words []string
	for i := 0; i < 150; i++ {
		words = append(words, "word")
	}
	text := ""
	for i, w := range words {
		if i > 0 {
			text += " "
		}
		text += w
	}
	if got := estimateDurationSeconds(text); got != 60 {
		t.Fatalf("150 words should estimate 60s, got %v", got)
	}
}
