// Package voices assigns concrete provider voice IDs to detected characters.
//
// Assignments are per book and immutable once made: a character keeps the
// same voice across every chapter of the book. Each provider carries its own
// curated pool; switching providers re-maps by style rather than reusing raw
// voice IDs.
package voices

// PoolVoice is one curated voice with the demographic and style tags used
// for assignment and cross-provider mapping.
type PoolVoice struct {
	ID     string
	Name   string
	Gender string // "male" or "female"
	Age    string // "young", "adult" or "elderly"
	Style  string // "warm", "deep", "bright", "calm", "gruff", "smooth"
}

// providerPools are the curated casting pools. ElevenLabs IDs come from the
// premade voice set; OpenAI voices are addressed by name.
var providerPools = map[string][]PoolVoice{
	"elevenlabs": {
		{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Bella", Gender: "female", Age: "young", Style: "warm"},
		{ID: "AZnzlk1XvdvUeBnXmlld", Name: "Domi", Gender: "female", Age: "young", Style: "bright"},
		{ID: "MF3mGyEYCl7XYWbV9V6O", Name: "Elli", Gender: "female", Age: "young", Style: "calm"},
		{ID: "XB0fDUnXU5powFXDhCwa", Name: "Charlotte", Gender: "female", Age: "adult", Style: "smooth"},
		{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Gender: "female", Age: "adult", Style: "calm"},
		{ID: "ThT5KcBeYPX3keUQqHPh", Name: "Dorothy", Gender: "female", Age: "elderly", Style: "warm"},
		{ID: "TxGEqnHWrfWFTfGW9XjX", Name: "Josh", Gender: "male", Age: "young", Style: "deep"},
		{ID: "yoZ06aMxZJJ28mfd3POQ", Name: "Sam", Gender: "male", Age: "young", Style: "bright"},
		{ID: "ErXwobaYiN019PkySvjV", Name: "Antoni", Gender: "male", Age: "adult", Style: "warm"},
		{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Gender: "male", Age: "adult", Style: "deep"},
		{ID: "IKne3meq5aSn9XLyUdCD", Name: "Charlie", Gender: "male", Age: "adult", Style: "smooth"},
		{ID: "onwK4e9ZLuTAKqWW03F9", Name: "Daniel", Gender: "male", Age: "adult", Style: "calm"},
		{ID: "VR6AewLTigWG4xSOukaG", Name: "Arnold", Gender: "male", Age: "elderly", Style: "gruff"},
		{ID: "JBFqnCBsd6RMkjVDRZzb", Name: "George", Gender: "male", Age: "elderly", Style: "warm"},
	},
	"openai": {
		{ID: "nova", Name: "nova", Gender: "female", Age: "young", Style: "bright"},
		{ID: "coral", Name: "coral", Gender: "female", Age: "young", Style: "warm"},
		{ID: "shimmer", Name: "shimmer", Gender: "female", Age: "adult", Style: "warm"},
		{ID: "sage", Name: "sage", Gender: "female", Age: "adult", Style: "calm"},
		{ID: "verse", Name: "verse", Gender: "male", Age: "young", Style: "bright"},
		{ID: "ballad", Name: "ballad", Gender: "male", Age: "young", Style: "smooth"},
		{ID: "alloy", Name: "alloy", Gender: "male", Age: "adult", Style: "calm"},
		{ID: "echo", Name: "echo", Gender: "male", Age: "adult", Style: "smooth"},
		{ID: "ash", Name: "ash", Gender: "male", Age: "adult", Style: "deep"},
		{ID: "onyx", Name: "onyx", Gender: "male", Age: "adult", Style: "deep"},
		{ID: "fable", Name: "fable", Gender: "male", Age: "elderly", Style: "warm"},
	},
}

// PoolFor returns the curated pool for a provider, or nil when the provider
// has none.
func PoolFor(provider string) []PoolVoice {
	return providerPools[provider]
}

// lookupPoolVoice finds a pool entry by voice ID.
func lookupPoolVoice(provider, voiceID string) (PoolVoice, bool) {
	for _, v := range providerPools[provider] {
		if v.ID == voiceID {
			return v, true
		}
	}
	return PoolVoice{}, false
}

// TranslateVoice derives an equivalent-style voice in the target provider's
// pool for a voice selected under another provider. Matching degrades from
// full demographic plus style down to gender only; with no match at all the
// target pool's first voice is returned.
func TranslateVoice(fromProvider, toProvider, voiceID string) string {
	if fromProvider == toProvider {
		return voiceID
	}
	target := providerPools[toProvider]
	if len(target) == 0 {
		return voiceID
	}

	src, ok := lookupPoolVoice(fromProvider, voiceID)
	if !ok {
		return target[0].ID
	}

	match := func(fn func(PoolVoice) bool) (string, bool) {
		for _, v := range target {
			if fn(v) {
				return v.ID, true
			}
		}
		return "", false
	}

	if id, ok := match(func(v PoolVoice) bool {
		return v.Gender == src.Gender && v.Age == src.Age && v.Style == src.Style
	}); ok {
		return id
	}
	if id, ok := match(func(v PoolVoice) bool {
		return v.Gender == src.Gender && v.Style == src.Style
	}); ok {
		return id
	}
	if id, ok := match(func(v PoolVoice) bool {
		return v.Gender == src.Gender && v.Age == src.Age
	}); ok {
		return id
	}
	if id, ok := match(func(v PoolVoice) bool { return v.Gender == src.Gender }); ok {
		return id
	}
	return target[0].ID
}
