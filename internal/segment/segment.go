// Package segment recovers chapter structure from raw document text.
//
// Detection runs in tiers: a heuristic marker scan over every line, an
// LLM-assisted pass when the scan finds too little structure, and a terminal
// fallback that returns the whole document as a single chapter. The fallback
// tiers are the correctness contract; individual marker hits are best-effort.
package segment

import (
	"context"
	"log/slog"
	"strings"

	"storyvox/internal/providers"
)

// Marker is a line identified as a chapter/section heading.
type Marker struct {
	Line     int
	Title    string
	Priority int // Lower is stronger; used when collapsing nearby markers
}

// Chapter is one extracted chapter, renumbered in document order.
type Chapter struct {
	Index int
	Title string
	Text  string
}

// Heuristics are the tunable constants of structure recovery. The defaults
// are empirically tuned and exposed through configuration.
type Heuristics struct {
	MaxHeadingLength  int // Lines longer than this are never headings
	IsolationLineMax  int // A neighbor line this short counts as isolation context
	CollapseDistance  int // Markers closer than this collapse into one
	MinChapterChars   int // Bodies below this are discarded as false positives
	MinChapterWords   int
	LeadingNoiseLines int     // Near-empty lines stripped from a chapter head
	FallbackSkipLines int     // Lines skipped after each AI-relocated marker
	CoverageWarnRatio float64 // Extraction coverage below this logs a warning
}

// DefaultHeuristics returns the tuned defaults.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		MaxHeadingLength:  100,
		IsolationLineMax:  50,
		CollapseDistance:  30,
		MinChapterChars:   200,
		MinChapterWords:   50,
		LeadingNoiseLines: 5,
		FallbackSkipLines: 20,
		CoverageWarnRatio: 0.90,
	}
}

// Detector turns raw document text into chapters.
type Detector struct {
	llm    providers.LLMClient
	heur   Heuristics
	logger *slog.Logger
}

// NewDetector creates a detector. llm may be nil, in which case the
// AI-assisted tier is skipped and detection goes straight to the terminal
// fallback when scanning fails.
func NewDetector(llm providers.LLMClient, heur Heuristics, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		llm:    llm,
		heur:   heur,
		logger: logger.With("component", "segment"),
	}
}

// DetectChapters runs the full detection tier chain. It never returns an
// empty slice: when no structure is recoverable the whole document comes back
// as a single chapter titled "Full Book".
func (d *Detector) DetectChapters(ctx context.Context, text string) []Chapter {
	lines := strings.Split(text, "\n")

	markers := ScanMarkers(lines, d.heur)
	chapters := ExtractChapters(lines, markers, d.heur)
	d.logCoverage("marker scan", text, chapters)

	if len(chapters) < 2 && d.llm != nil {
		aiMarkers, err := d.aiMarkers(ctx, text, lines)
		if err != nil {
			d.logger.Warn("AI chapter detection failed", "error", err)
		} else if len(aiMarkers) >= 2 {
			chapters = ExtractChapters(lines, aiMarkers, d.heur)
			d.logCoverage("ai fallback", text, chapters)
		}
	}

	if len(chapters) < 2 {
		d.logger.Info("no usable chapter structure found, returning single chapter")
		return []Chapter{{Index: 0, Title: "Full Book", Text: text}}
	}

	return chapters
}

func (d *Detector) logCoverage(tier, original string, chapters []Chapter) {
	if len(original) == 0 || len(chapters) == 0 {
		return
	}
	total := 0
	for _, ch := range chapters {
		total += len(ch.Text)
	}
	ratio := float64(total) / float64(len(original))
	if ratio < d.heur.CoverageWarnRatio {
		d.logger.Warn("low extraction coverage",
			"tier", tier, "chapters", len(chapters), "coverage", ratio)
		return
	}
	d.logger.Debug("extraction coverage",
		"tier", tier, "chapters", len(chapters), "coverage", ratio)
}
