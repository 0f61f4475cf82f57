package segment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"storyvox/internal/providers"
)

func TestDetectChaptersScanTier(t *testing.T) {
	lines := docLines(
		[]string{"Chapter 1", ""},
		prose(40),
		[]string{"", "Chapter 2", ""},
		prose(40),
	)
	text := strings.Join(lines, "\n")

	d := NewDetector(nil, DefaultHeuristics(), nil)
	chapters := d.DetectChapters(context.Background(), text)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters from scan tier, got %d", len(chapters))
	}
}

func TestDetectChaptersTerminalFallback(t *testing.T) {
	text := strings.Join(prose(100), "\n")

	d := NewDetector(nil, DefaultHeuristics(), nil)
	chapters := d.DetectChapters(context.Background(), text)
	if len(chapters) != 1 {
		t.Fatalf("expected single fallback chapter, got %d", len(chapters))
	}
	ch := chapters[0]
	if ch.Index != 0 || ch.Title != "Full Book" {
		t.Fatalf("unexpected fallback chapter: index=%d title=%q", ch.Index, ch.Title)
	}
	if ch.Text != text {
		t.Fatal("fallback chapter must carry the full document text")
	}
}

func TestDetectChaptersAITier(t *testing.T) {
	// Headings that the heuristic scan cannot classify but an LLM can name.
	lines := docLines(
		[]string{"The Storm Arrives", ""},
		prose(40),
		[]string{"", "A Long Winter", ""},
		prose(40),
	)
	text := strings.Join(lines, "\n")

	parsed, _ := json.Marshal(aiMarkerResponse{
		Markers: []string{"The Storm Arrives", "A Long Winter"},
	})
	llm := &providers.MockLLMClient{
		Responses: []*providers.ChatResult{
			{Success: true, ParsedJSON: parsed},
		},
	}

	d := NewDetector(llm, DefaultHeuristics(), nil)
	chapters := d.DetectChapters(context.Background(), text)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters from AI tier, got %d", len(chapters))
	}
	if chapters[0].Title != "The Storm Arrives" || chapters[1].Title != "A Long Winter" {
		t.Fatalf("unexpected chapter titles: %q, %q", chapters[0].Title, chapters[1].Title)
	}
	if len(llm.Requests) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(llm.Requests))
	}
}

func TestDetectChaptersAIFailureFallsThrough(t *testing.T) {
	text := strings.Join(prose(100), "\n")
	llm := &providers.MockLLMClient{Err: errors.New("provider unavailable")}

	d := NewDetector(llm, DefaultHeuristics(), nil)
	chapters := d.DetectChapters(context.Background(), text)
	if len(chapters) != 1 || chapters[0].Title != "Full Book" {
		t.Fatalf("AI failure should fall through to single chapter, got %+v", chapters)
	}
}

func TestDetectChaptersAINeedsTwoLocated(t *testing.T) {
	// The model returns one real heading and one that does not exist in the
	// text. A single located marker is not enough to trust the AI tier.
	lines := docLines([]string{"The Storm Arrives", ""}, prose(100))
	text := strings.Join(lines, "\n")

	parsed, _ := json.Marshal(aiMarkerResponse{
		Markers: []string{"The Storm Arrives", "Invented Heading"},
	})
	llm := &providers.MockLLMClient{
		Responses: []*providers.ChatResult{
			{Success: true, ParsedJSON: parsed},
		},
	}

	d := NewDetector(llm, DefaultHeuristics(), nil)
	chapters := d.DetectChapters(context.Background(), text)
	if len(chapters) != 1 || chapters[0].Title != "Full Book" {
		t.Fatalf("expected terminal fallback, got %+v", chapters)
	}
}

func TestSampleWindows(t *testing.T) {
	short := strings.Repeat("a", 1000)
	if got := sampleWindows(short, fallbackSampleSize); len(got) != 1 || got[0] != short {
		t.Fatalf("short text should come back whole, got %d windows", len(got))
	}

	long := strings.Repeat("b", fallbackSampleSize*10)
	windows := sampleWindows(long, fallbackSampleSize)
	if len(windows) != 4 {
		t.Fatalf("expected 4 sample windows, got %d", len(windows))
	}
	for i, w := range windows {
		if len(w) != fallbackSampleSize {
			t.Fatalf("window %d has length %d", i, len(w))
		}
	}
}

func TestLocateMarkersSkipsTOC(t *testing.T) {
	// The same heading appears in a contents list and in the body; the skip
	// cursor must land successive titles past earlier matches.
	var lines []string
	lines = append(lines, "The Storm Arrives", "A Long Winter", "")
	lines = append(lines, prose(30)...)
	firstBody := len(lines)
	lines = append(lines, "The Storm Arrives", "")
	lines = append(lines, prose(30)...)
	lines = append(lines, "A Long Winter", "")
	lines = append(lines, prose(30)...)

	d := NewDetector(nil, DefaultHeuristics(), nil)
	markers := d.locateMarkers(lines, []string{"The Storm Arrives", "A Long Winter"})
	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d: %+v", len(markers), markers)
	}
	if markers[0].Line != 0 && markers[0].Line != firstBody {
		t.Fatalf("first marker at unexpected line %d", markers[0].Line)
	}
	if markers[1].Line <= markers[0].Line {
		t.Fatalf("markers out of order: %+v", markers)
	}
}
