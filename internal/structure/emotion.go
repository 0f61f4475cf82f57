package structure

import "strings"

// emotionVocabulary is the closed set of emotion hints carried on chunks.
// TTS adapters map these onto provider-specific delivery settings.
var emotionVocabulary = map[string]bool{
	"neutral": true, "joyful": true, "sad": true, "angry": true,
	"fearful": true, "excited": true, "romantic": true, "mysterious": true,
	"tense": true, "contemplative": true, "warm": true, "cold": true,
}

func validEmotion(e string) bool {
	return emotionVocabulary[e]
}

// emotionLexicon maps keyword cues to emotions for the no-LLM fallback.
// Checked in order; first hit wins.
var emotionLexicon = []struct {
	emotion string
	words   []string
}{
	{"excited", []string{"!", "amazing", "incredible", "hurry", "quick", "suddenly"}},
	{"sad", []string{"wept", "tears", "sobbed", "grief", "mourn", "funeral", "goodbye"}},
	{"angry", []string{"shouted", "yelled", "furious", "rage", "slammed", "snapped"}},
	{"fearful", []string{"afraid", "terror", "trembl", "scream", "horror", "panic"}},
	{"romantic", []string{"kissed", "love", "embrace", "tender", "darling", "heart"}},
	{"mysterious", []string{"strange", "mystery", "whisper", "shadow", "secret", "?"}},
}

// lexicalEmotion picks an emotion by keyword matching, defaulting to neutral.
func lexicalEmotion(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range emotionLexicon {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.emotion
			}
		}
	}
	return "neutral"
}
