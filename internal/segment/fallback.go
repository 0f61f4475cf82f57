package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"storyvox/internal/providers"
)

const (
	fallbackSampleSize = 4000
	fallbackMaxMarkers = 200
)

// aiMarkerSchema constrains the fallback response to an ordered list of
// literal marker strings.
var aiMarkerSchema = json.RawMessage(`{
	"type": "object",
	"required": ["markers"],
	"properties": {
		"markers": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`)

const aiMarkerSystemPrompt = `You identify chapter and section headings in book text.
Given samples from a document, return every chapter/section marker you can find,
as the literal heading text exactly as it appears, in document order.
Include front matter (prologue, preface), numbered chapters, parts, and back
matter (epilogue, afterword). Return JSON: {"markers": ["...", "..."]}.`

type aiMarkerResponse struct {
	Markers []string `json:"markers"`
}

// aiMarkers asks the LLM for marker titles from document samples and then
// re-locates each title in the real text.
func (d *Detector) aiMarkers(ctx context.Context, text string, lines []string) ([]Marker, error) {
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: aiMarkerSystemPrompt},
			{Role: "user", Content: buildSamplePrompt(text)},
		},
		Temperature: 0.1,
		ResponseFormat: &providers.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: aiMarkerSchema,
		},
	}

	result, err := d.llm.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("marker detection call: %w", err)
	}

	var resp aiMarkerResponse
	if err := json.Unmarshal(result.ParsedJSON, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse marker response: %w", err)
	}
	if len(resp.Markers) > fallbackMaxMarkers {
		resp.Markers = resp.Markers[:fallbackMaxMarkers]
	}

	markers := d.locateMarkers(lines, resp.Markers)
	d.logger.Info("AI fallback located markers",
		"returned", len(resp.Markers), "located", len(markers))
	return markers, nil
}

// buildSamplePrompt extracts four windows (start, ~30%, ~60%, end) so the
// model sees structure from across the document without the full text.
func buildSamplePrompt(text string) string {
	samples := sampleWindows(text, fallbackSampleSize)

	var b strings.Builder
	b.WriteString("Find all chapter/section markers in this document.\n")
	for i, s := range samples {
		fmt.Fprintf(&b, "\n--- SAMPLE %d ---\n%s\n", i+1, s)
	}
	return b.String()
}

func sampleWindows(text string, size int) []string {
	if len(text) <= size*4 {
		return []string{text}
	}

	offsets := []int{
		0,
		len(text) * 30 / 100,
		len(text) * 60 / 100,
		len(text) - size,
	}

	samples := make([]string, 0, len(offsets))
	for _, off := range offsets {
		end := off + size
		if end > len(text) {
			end = len(text)
		}
		samples = append(samples, text[off:end])
	}
	return samples
}

// locateMarkers finds each returned title in the real text using the same
// isolation heuristic as the scanner. The search cursor skips forward after
// each match so a table-of-contents occurrence is not matched twice.
func (d *Detector) locateMarkers(lines []string, titles []string) []Marker {
	var markers []Marker
	cursor := 0

	for _, title := range titles {
		want := strings.ToLower(strings.TrimSpace(title))
		if want == "" {
			continue
		}

		for i := cursor; i < len(lines); i++ {
			line := strings.ToLower(strings.TrimSpace(lines[i]))
			if line == "" {
				continue
			}
			if line != want && !strings.HasPrefix(line, want) {
				continue
			}
			if !hasIsolationContext(lines, i, d.heur) {
				continue
			}

			markers = append(markers, Marker{Line: i, Title: strings.TrimSpace(lines[i]), Priority: 2})
			cursor = i + d.heur.FallbackSkipLines
			break
		}
	}

	sort.Slice(markers, func(a, b int) bool { return markers[a].Line < markers[b].Line })
	return markers
}
