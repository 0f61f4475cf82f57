// Package structure turns chapter text into an ordered list of narration
// chunks tagged with a speaking voice and an emotion hint.
//
// Classification is metadata-only. Chunk text is always the original
// paragraph text; when the language model is unavailable a lexical heuristic
// supplies the tags instead, so structuring never loses input text and never
// blocks the pipeline.
package structure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"storyvox/internal/providers"
)

// Character is a speaking character detected in chapter text.
type Character struct {
	Name        string `json:"name"`
	Gender      string `json:"gender"`      // "male", "female" or "unknown"
	Age         string `json:"age"`         // "child", "young", "adult" or "elderly"
	Personality string `json:"personality"` // Short free-form descriptor
}

// ChunkSpec is one narration chunk in chapter order.
type ChunkSpec struct {
	Idx       int    `json:"idx"`
	Voice     string `json:"voice"` // "narrator", "dialogue", or a character name
	Character string `json:"character,omitempty"`
	Emotion   string `json:"emotionHint"`
	Text      string `json:"text"`
}

const (
	// VoiceNarrator tags prose spoken by the narrator.
	VoiceNarrator = "narrator"
	// VoiceDialogue tags quoted speech with no attributed character.
	VoiceDialogue = "dialogue"
)

const classifyBatchSize = 10

// Structurer drives paragraph classification for a chapter.
type Structurer struct {
	llm         providers.LLMClient
	logger      *slog.Logger
	coverageMin float64
}

// NewStructurer creates a structurer. llm may be nil; every batch then uses
// the lexical heuristic.
func NewStructurer(llm providers.LLMClient, coverageMin float64, logger *slog.Logger) *Structurer {
	if logger == nil {
		logger = slog.Default()
	}
	if coverageMin <= 0 {
		coverageMin = 0.95
	}
	return &Structurer{
		llm:         llm,
		logger:      logger.With("component", "structure"),
		coverageMin: coverageMin,
	}
}

var classifySchema = json.RawMessage(`{
	"type": "object",
	"required": ["paragraphs"],
	"properties": {
		"paragraphs": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["index", "speaker", "emotion"],
				"properties": {
					"index":   {"type": "integer"},
					"speaker": {"type": "string"},
					"emotion": {"type": "string"}
				}
			}
		}
	}
}`)

const classifySystemPrompt = `You classify paragraphs of a book chapter for audiobook narration.
For each numbered paragraph, decide who speaks it:
- "narrator" for descriptive prose
- the character's name when the paragraph is dialogue attributed to a known character
- "dialogue" for quoted speech you cannot attribute
Also pick one emotion from: neutral, joyful, sad, angry, fearful, excited,
romantic, mysterious, tense, contemplative, warm, cold.
Return JSON: {"paragraphs": [{"index": 0, "speaker": "...", "emotion": "..."}]}.
Do not rewrite or quote the paragraph text.`

type classifyResponse struct {
	Paragraphs []struct {
		Index   int    `json:"index"`
		Speaker string `json:"speaker"`
		Emotion string `json:"emotion"`
	} `json:"paragraphs"`
}

// Structure splits chapter text into paragraphs and classifies them in
// batches. Every input paragraph yields exactly one chunk carrying its
// original text.
func (s *Structurer) Structure(ctx context.Context, text string, characters []Character) []ChunkSpec {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	known := make(map[string]string, len(characters))
	for _, c := range characters {
		known[strings.ToLower(c.Name)] = c.Name
	}

	chunks := make([]ChunkSpec, 0, len(paragraphs))
	for start := 0; start < len(paragraphs); start += classifyBatchSize {
		end := start + classifyBatchSize
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		batch := paragraphs[start:end]

		tags := s.classifyBatch(ctx, batch, characters)
		for i, para := range batch {
			tag := tags[i]
			chunk := ChunkSpec{
				Idx:     start + i,
				Voice:   tag.voice,
				Emotion: tag.emotion,
				Text:    para,
			}
			if name, ok := known[strings.ToLower(tag.voice)]; ok {
				chunk.Voice = name
				chunk.Character = name
			}
			chunks = append(chunks, chunk)
		}
	}

	s.checkCoverage(text, chunks)
	return chunks
}

type paragraphTag struct {
	voice   string
	emotion string
}

// classifyBatch asks the LLM for speaker/emotion tags and falls back to the
// lexical heuristic per paragraph when the call or parse fails.
func (s *Structurer) classifyBatch(ctx context.Context, batch []string, characters []Character) []paragraphTag {
	tags := make([]paragraphTag, len(batch))
	for i, para := range batch {
		tags[i] = lexicalTag(para)
	}
	if s.llm == nil {
		return tags
	}

	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: classifySystemPrompt},
			{Role: "user", Content: buildClassifyPrompt(batch, characters)},
		},
		Temperature: 0.1,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: classifySchema,
		},
	}

	result, err := s.llm.Chat(ctx, req)
	if err != nil {
		s.logger.Warn("paragraph classification failed, using lexical fallback",
			"paragraphs", len(batch), "error", err)
		return tags
	}

	var resp classifyResponse
	if err := json.Unmarshal(result.ParsedJSON, &resp); err != nil {
		s.logger.Warn("unparseable classification response, using lexical fallback", "error", err)
		return tags
	}

	for _, p := range resp.Paragraphs {
		if p.Index < 0 || p.Index >= len(batch) {
			continue
		}
		voice := strings.TrimSpace(p.Speaker)
		if voice == "" {
			continue
		}
		tag := paragraphTag{voice: voice, emotion: strings.ToLower(strings.TrimSpace(p.Emotion))}
		if !validEmotion(tag.emotion) {
			tag.emotion = lexicalEmotion(batch[p.Index])
		}
		tags[p.Index] = tag
	}
	return tags
}

func buildClassifyPrompt(batch []string, characters []Character) string {
	var b strings.Builder
	if len(characters) > 0 {
		b.WriteString("Known characters:\n")
		for _, c := range characters {
			fmt.Fprintf(&b, "- %s (%s, %s): %s\n", c.Name, c.Gender, c.Age, c.Personality)
		}
		b.WriteString("\n")
	}
	b.WriteString("Classify these paragraphs:\n")
	for i, para := range batch {
		fmt.Fprintf(&b, "\n[%d] %s\n", i, para)
	}
	return b.String()
}

// lexicalTag is the no-LLM classification: quotation marks mean dialogue.
func lexicalTag(para string) paragraphTag {
	voice := VoiceNarrator
	if strings.ContainsAny(para, `"“”`) {
		voice = VoiceDialogue
	}
	return paragraphTag{voice: voice, emotion: lexicalEmotion(para)}
}

// checkCoverage compares emitted chunk text against the normalized original.
// Falling below the threshold is logged, never fatal.
func (s *Structurer) checkCoverage(original string, chunks []ChunkSpec) {
	origLen := len(normalizeWhitespace(original))
	if origLen == 0 {
		return
	}
	total := 0
	for _, ch := range chunks {
		total += len(normalizeWhitespace(ch.Text))
	}
	ratio := float64(total) / float64(origLen)
	if ratio < s.coverageMin {
		s.logger.Warn("chunk coverage below threshold",
			"coverage", ratio, "threshold", s.coverageMin, "chunks", len(chunks))
		return
	}
	s.logger.Debug("chunk coverage", "coverage", ratio, "chunks", len(chunks))
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
