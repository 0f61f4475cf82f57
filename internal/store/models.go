package store

// Chunk status values. Transitions run forward only, except a regeneration
// reset which deletes the rows outright.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Book carries the narration settings and rollup progress for one book.
// AssignmentsProvider records which provider's pool VoiceAssignments were
// made under, so a later provider switch can re-map the voices by style.
type Book struct {
	ID                  string
	Title               string
	TTSProvider         string
	NarratorVoiceID     string
	TotalChapters       int
	CompletedChapters   int
	AudioComplete       bool
	VoiceAssignments    map[string]string
	AssignmentsProvider string
}

// Chapter is one extracted chapter of a book.
type Chapter struct {
	ID     string
	BookID string
	Index  int
	Title  string
	Text   string
}

// AudioChunk is one synthesized narration unit of a chapter.
type AudioChunk struct {
	ID              string
	ChapterID       string
	Idx             int
	Voice           string
	Provider        string
	Text            string
	Emotion         string
	Status          string
	AudioURL        string
	DurationSeconds float64
	ErrorMessage    string
}

// StatusCounts is the per-chapter rollup reported when a job finishes.
type StatusCounts struct {
	Done    int
	Error   int
	Pending int
}

// Total returns the number of chunks counted.
func (c StatusCounts) Total() int {
	return c.Done + c.Error + c.Pending
}
