package structure

import (
	"regexp"
	"strings"
)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

const (
	// Texts longer than this with almost no blank lines are assumed to have
	// lost their paragraph breaks (common in OCR output).
	denseTextThreshold = 1000
	targetSegmentChars = 500
)

// splitParagraphs splits chapter text into paragraphs. Blank-line boundaries
// are authoritative; for longer texts with too few breaks it retries on
// single newlines, and as a last resort accumulates sentences into segments
// of roughly targetSegmentChars.
func splitParagraphs(text string) []string {
	paras := nonEmpty(blankLineRe.Split(text, -1))
	if len(paras) >= 5 || len(text) <= denseTextThreshold {
		return paras
	}

	paras = nonEmpty(strings.Split(text, "\n"))
	if len(paras) >= 3 {
		return paras
	}

	return accumulateSentences(text, targetSegmentChars)
}

func nonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// accumulateSentences greedily packs sentences into segments close to the
// target size, never splitting inside a sentence.
func accumulateSentences(text string, target int) []string {
	sentences := splitSentences(text)

	var segments []string
	var b strings.Builder
	for _, s := range sentences {
		if b.Len() > 0 && b.Len()+len(s)+1 > target {
			segments = append(segments, strings.TrimSpace(b.String()))
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() > 0 {
		segments = append(segments, strings.TrimSpace(b.String()))
	}
	return segments
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace. Good enough for segment packing; not a linguistic tokenizer.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Consume trailing closers like quotes before the break.
			j := i + 1
			for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == '”' || runes[j] == ')') {
				j++
			}
			if j >= len(runes) || runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' {
				s := strings.TrimSpace(string(runes[start:j]))
				if s != "" {
					sentences = append(sentences, s)
				}
				start = j
				i = j - 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
