package segment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var (
	// Trailing run of dots/dashes/spaces followed by a page number marks a
	// table-of-contents entry, not a heading.
	tocSuffixRe = regexp.MustCompile(`[.\-\s]{3,}\d+\s*$`)

	chapterRe = regexp.MustCompile(`(?i)^chapter\s+([0-9]+|[a-z]+(?:[-\s][a-z]+)?)\b`)
	partRe    = regexp.MustCompile(`(?i)^part\s+([0-9]+|[a-z]+(?:[-\s][a-z]+)?)\b`)
	bareNumRe = regexp.MustCompile(`^(\d{1,3})\.?$`)
)

var frontMatterNames = []string{"foreword", "preface", "prologue", "introduction"}

var backMatterNames = []string{"epilogue", "afterword", "acknowledgments", "about the author", "author's note"}

// ScanMarkers scans document lines for structural chapter markers and returns
// them ordered by line position, deduplicated, and collapsed so that a table
// of contents listing the same headings does not double-count them.
func ScanMarkers(lines []string, heur Heuristics) []Marker {
	var markers []Marker
	seen := make(map[string]bool)
	haveChapterMatch := false

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || len(line) > heur.MaxHeadingLength {
			continue
		}
		if tocSuffixRe.MatchString(line) {
			continue
		}
		if !hasIsolationContext(lines, i, heur) {
			continue
		}

		key, priority := classifyLine(line, lines, i, haveChapterMatch)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if priority == 2 {
			haveChapterMatch = true
		}

		markers = append(markers, Marker{Line: i, Title: line, Priority: priority})
	}

	sort.Slice(markers, func(a, b int) bool { return markers[a].Line < markers[b].Line })

	return collapseNearby(markers, heur.CollapseDistance)
}

// classifyLine tests the pattern classes in priority order and returns a
// dedup key plus the matched priority, or "" when the line is not a marker.
func classifyLine(line string, lines []string, idx int, haveChapterMatch bool) (string, int) {
	lower := strings.ToLower(line)

	for _, name := range frontMatterNames {
		if matchesSectionName(lower, name) {
			return "front:" + name, 1
		}
	}

	if m := chapterRe.FindStringSubmatch(line); m != nil {
		if n, ok := parseChapterNumber(m[1]); ok {
			return fmt.Sprintf("chapter:%d", n), 2
		}
	}

	if m := partRe.FindStringSubmatch(line); m != nil {
		if n, ok := parseChapterNumber(m[1]); ok {
			return fmt.Sprintf("part:%d", n), 3
		}
	}

	for _, name := range backMatterNames {
		if matchesSectionName(lower, name) {
			return "back:" + name, 4
		}
	}

	// Bare standalone numbers only count when no explicit "Chapter N" style
	// exists and the following line looks like prose.
	if !haveChapterMatch {
		if m := bareNumRe.FindStringSubmatch(line); m != nil && nextLineLooksLikeProse(lines, idx) {
			n, _ := strconv.Atoi(m[1])
			return fmt.Sprintf("bare:%d", n), 5
		}
	}

	return "", 0
}

// matchesSectionName accepts the bare section name or the name followed by
// punctuation/subtitle (e.g. "Prologue: The Storm"), but not prose that merely
// begins with the word.
func matchesSectionName(lower, name string) bool {
	if lower == name {
		return true
	}
	if !strings.HasPrefix(lower, name) {
		return false
	}
	rest := lower[len(name):]
	return strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, " -") || strings.HasPrefix(rest, " —")
}

// hasIsolationContext reports whether a candidate heading is surrounded like a
// standalone heading: the previous or next line is blank or short.
func hasIsolationContext(lines []string, idx int, heur Heuristics) bool {
	prevShort := idx == 0
	if idx > 0 {
		prev := strings.TrimSpace(lines[idx-1])
		prevShort = len(prev) <= heur.IsolationLineMax
	}
	nextShort := idx == len(lines)-1
	if idx < len(lines)-1 {
		next := strings.TrimSpace(lines[idx+1])
		nextShort = len(next) <= heur.IsolationLineMax
	}
	return prevShort || nextShort
}

// nextLineLooksLikeProse checks the first non-blank following line for prose
// shape: reasonably long, or starting with a capital letter.
func nextLineLooksLikeProse(lines []string, idx int) bool {
	for j := idx + 1; j < len(lines) && j <= idx+3; j++ {
		next := strings.TrimSpace(lines[j])
		if next == "" {
			continue
		}
		if len(next) > 20 {
			return true
		}
		runes := []rune(next)
		return unicode.IsUpper(runes[0])
	}
	return false
}

// collapseNearby merges markers closer than minDistance lines apart (usually
// accidental TOC duplicates), keeping the higher-priority one.
func collapseNearby(markers []Marker, minDistance int) []Marker {
	if len(markers) < 2 {
		return markers
	}

	out := markers[:1]
	for _, m := range markers[1:] {
		last := &out[len(out)-1]
		if m.Line-last.Line < minDistance {
			if m.Priority < last.Priority {
				*last = m
			}
			continue
		}
		out = append(out, m)
	}
	return out
}
