package segment

import (
	"strings"
)

// ExtractChapters slices document lines into chapters between consecutive
// markers. Candidates with too little body text are discarded as false
// positive headings; survivors are renumbered 0..N-1 in document order.
func ExtractChapters(lines []string, markers []Marker, heur Heuristics) []Chapter {
	var chapters []Chapter

	for i, m := range markers {
		start := m.Line + 1
		end := len(lines)
		if i+1 < len(markers) {
			end = markers[i+1].Line
		}
		if start >= end {
			continue
		}

		body := lines[start:end]
		body = stripLeadingNoise(body, heur.LeadingNoiseLines)

		text := strings.TrimSpace(strings.Join(body, "\n"))
		if len(text) < heur.MinChapterChars || len(strings.Fields(text)) < heur.MinChapterWords {
			continue
		}

		chapters = append(chapters, Chapter{
			Index: len(chapters),
			Title: m.Title,
			Text:  text,
		})
	}

	return chapters
}

// stripLeadingNoise drops up to max near-empty lines from the chapter head
// (subtitle and byline debris under the heading).
func stripLeadingNoise(body []string, max int) []string {
	stripped := 0
	for len(body) > 0 && stripped < max {
		if len(strings.TrimSpace(body[0])) > 2 {
			break
		}
		body = body[1:]
		stripped++
	}
	return body
}
