package providers

import (
	"context"
	"encoding/json"
	"time"
)

// LLMClient is the interface for chat/completion requests used by the
// segmentation fallback and the text structurer.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openrouter").
	Name() string
}

// TTSProvider converts text into encoded audio. Implementations own their
// voice-ID validation and error classification.
type TTSProvider interface {
	// Name returns the provider identifier (e.g., "elevenlabs", "openai").
	Name() string

	// Generate converts text to audio. Empty input is rejected. Voice IDs
	// not in the provider's known set are substituted with a safe default
	// rather than failing the request.
	Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error)

	// ListVoices returns the voices the provider can synthesize with.
	ListVoices(ctx context.Context) ([]Voice, error)

	// NormalizeVoice maps an arbitrary voice ID onto the provider's known
	// set, returning the provider default when the ID is unrecognized.
	NormalizeVoice(voiceID string) string

	// RequestsPerSecond returns the provider's rate limit.
	RequestsPerSecond() float64
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat specifies structured output format.
type ResponseFormat struct {
	Type       string          `json:"type"` // "json_schema"
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Structured output
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content    string          `json:"content"`
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"` // Set if ResponseFormat was requested

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// TTSRequest is a single synthesis request.
type TTSRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice,omitempty"`  // Provider voice ID; client default if empty
	Format string `json:"format,omitempty"` // Output format; provider default if empty

	// Emotion is a hint from the text structurer (e.g., "tense", "joyful").
	// Expressive providers map it onto delivery parameters; others ignore it.
	Emotion string `json:"emotion,omitempty"`
}

// TTSResult is the response from a synthesis call.
type TTSResult struct {
	Success       bool          `json:"success"`
	Audio         []byte        `json:"-"`
	Format        string        `json:"format,omitempty"`
	SampleRate    int           `json:"sample_rate,omitempty"`
	DurationMS    int           `json:"duration_ms,omitempty"`
	CharCount     int           `json:"char_count"`
	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Voice describes a synthesizable voice.
type Voice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
