package structure

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"storyvox/internal/providers"
)

const chapterSample = `The market square was empty at that hour.

"We leave at dawn," said Mira.

"Fine by me," came the reply from somewhere in the dark.

Nobody moved for a long moment.

The gates opened with the first light.`

func TestStructureLexicalFallback(t *testing.T) {
	s := NewStructurer(nil, 0.95, nil)
	chunks := s.Structure(context.Background(), chapterSample, nil)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	wantVoices := []string{VoiceNarrator, VoiceDialogue, VoiceDialogue, VoiceNarrator, VoiceNarrator}
	for i, ch := range chunks {
		if ch.Idx != i {
			t.Errorf("chunk %d has idx %d", i, ch.Idx)
		}
		if ch.Voice != wantVoices[i] {
			t.Errorf("chunk %d voice = %q, want %q", i, ch.Voice, wantVoices[i])
		}
		if !validEmotion(ch.Emotion) {
			t.Errorf("chunk %d has emotion outside vocabulary: %q", i, ch.Emotion)
		}
	}
}

func TestStructureUsesLLMTags(t *testing.T) {
	resp := classifyResponse{}
	for i, tag := range []struct{ speaker, emotion string }{
		{"narrator", "contemplative"},
		{"mira", "tense"},
		{"dialogue", "neutral"},
		{"narrator", "tense"},
		{"narrator", "warm"},
	} {
		resp.Paragraphs = append(resp.Paragraphs, struct {
			Index   int    `json:"index"`
			Speaker string `json:"speaker"`
			Emotion string `json:"emotion"`
		}{Index: i, Speaker: tag.speaker, Emotion: tag.emotion})
	}
	parsed, _ := json.Marshal(resp)

	llm := &providers.MockLLMClient{
		Responses: []*providers.ChatResult{{Success: true, ParsedJSON: parsed}},
	}
	characters := []Character{{Name: "Mira", Gender: "female", Age: "young", Personality: "decisive"}}

	s := NewStructurer(llm, 0.95, nil)
	chunks := s.Structure(context.Background(), chapterSample, characters)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	if chunks[1].Voice != "Mira" || chunks[1].Character != "Mira" {
		t.Fatalf("character attribution failed: %+v", chunks[1])
	}
	if chunks[1].Emotion != "tense" {
		t.Fatalf("LLM emotion not applied: %+v", chunks[1])
	}
	if chunks[2].Voice != VoiceDialogue || chunks[2].Character != "" {
		t.Fatalf("generic dialogue mishandled: %+v", chunks[2])
	}
	if len(llm.Requests) != 1 {
		t.Fatalf("expected one batch call for 5 paragraphs, got %d", len(llm.Requests))
	}
}

func TestStructurePreservesOriginalText(t *testing.T) {
	// The model tries to "clean up" text; only its tags may be used.
	parsed, _ := json.Marshal(map[string]any{
		"paragraphs": []map[string]any{
			{"index": 0, "speaker": "narrator", "emotion": "neutral"},
		},
	})
	llm := &providers.MockLLMClient{
		Responses: []*providers.ChatResult{{Success: true, ParsedJSON: parsed}},
	}

	s := NewStructurer(llm, 0.95, nil)
	chunks := s.Structure(context.Background(), chapterSample, nil)

	var got []string
	for _, ch := range chunks {
		got = append(got, ch.Text)
	}
	if normalizeWhitespace(strings.Join(got, " ")) != normalizeWhitespace(chapterSample) {
		t.Fatal("chunk text does not reproduce the original chapter text")
	}
}

func TestStructureLLMFailureKeepsAllText(t *testing.T) {
	llm := &providers.MockLLMClient{Err: errors.New("model offline")}

	s := NewStructurer(llm, 0.95, nil)
	chunks := s.Structure(context.Background(), chapterSample, nil)

	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks despite LLM failure, got %d", len(chunks))
	}
	total := 0
	for _, ch := range chunks {
		total += len(normalizeWhitespace(ch.Text))
	}
	orig := len(normalizeWhitespace(chapterSample))
	if float64(total) < 0.95*float64(orig) {
		t.Fatalf("coverage %d/%d below 95%%", total, orig)
	}
}

func TestStructureInvalidEmotionFallsBack(t *testing.T) {
	parsed, _ := json.Marshal(map[string]any{
		"paragraphs": []map[string]any{
			{"index": 0, "speaker": "narrator", "emotion": "melancholic-ish"},
		},
	})
	llm := &providers.MockLLMClient{
		Responses: []*providers.ChatResult{{Success: true, ParsedJSON: parsed}},
	}

	s := NewStructurer(llm, 0.95, nil)
	chunks := s.Structure(context.Background(), "A single paragraph of prose.", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !validEmotion(chunks[0].Emotion) {
		t.Fatalf("invalid emotion passed through: %q", chunks[0].Emotion)
	}
}

func TestStructureBatching(t *testing.T) {
	var paras []string
	for i := 0; i < 23; i++ {
		paras = append(paras, "Paragraph number content goes here.")
	}
	text := strings.Join(paras, "\n\n")

	llm := &providers.MockLLMClient{Err: errors.New("no responses scripted")}
	s := NewStructurer(llm, 0.95, nil)
	chunks := s.Structure(context.Background(), text, nil)

	if len(chunks) != 23 {
		t.Fatalf("expected 23 chunks, got %d", len(chunks))
	}
	if len(llm.Requests) != 3 {
		t.Fatalf("expected 3 batch calls for 23 paragraphs, got %d", len(llm.Requests))
	}
	for i, ch := range chunks {
		if ch.Idx != i {
			t.Fatalf("chunk ordering broken at %d: idx %d", i, ch.Idx)
		}
	}
}
