package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAITTSName         = "openai"
	openAITTSDefaultModel = openai.SpeechModelTTS1HD
	openAITTSDefaultVoice = "onyx"
)

// openAITTSVoices is the fixed built-in voice set.
var openAITTSVoices = []string{
	"alloy", "ash", "ballad", "coral", "echo", "fable", "nova",
	"onyx", "sage", "shimmer", "verse",
}

// OpenAITTSConfig holds configuration for the OpenAI TTS client.
type OpenAITTSConfig struct {
	APIKey     string
	Model      string        // "tts-1-hd" (default), "tts-1", "gpt-4o-mini-tts"
	Voice      string        // "onyx" (default)
	Speed      float64       // 0.25-4.0
	RateLimit  float64       // Requests per second
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAITTSClient implements TTSProvider using the official OpenAI SDK.
// OpenAI's speech endpoint has no per-request expressiveness controls, so
// emotion hints are ignored.
type OpenAITTSClient struct {
	apiKey    string
	model     string
	voice     string
	speed     float64
	rateLimit float64
	client    openai.Client
}

// NewOpenAITTSClient creates a new OpenAI TTS client.
func NewOpenAITTSClient(cfg OpenAITTSConfig) *OpenAITTSClient {
	if cfg.Model == "" {
		cfg.Model = openAITTSDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = openAITTSDefaultVoice
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.RateLimit <= 0 {
		// Default to ~500 RPM.
		cfg.RateLimit = 8.0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITTSClient{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		voice:     cfg.Voice,
		speed:     cfg.Speed,
		rateLimit: cfg.RateLimit,
		client:    openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAITTSClient) Name() string {
	return OpenAITTSName
}

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAITTSClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// NormalizeVoice validates a voice name against the built-in set, substituting
// the client default for unknown names. Voice names derived by cross-provider
// mapping land here instead of failing the request.
func (c *OpenAITTSClient) NormalizeVoice(voiceID string) string {
	v := strings.ToLower(strings.TrimSpace(voiceID))
	if v == "" {
		return c.voice
	}
	for _, known := range openAITTSVoices {
		if v == known {
			return v
		}
	}
	return c.voice
}

// Generate converts text to audio using the OpenAI speech API.
func (c *OpenAITTSClient) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Text) == "" {
		err := fmt.Errorf("text is required")
		return &TTSResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	text := strings.TrimSpace(req.Text)
	voice := c.NormalizeVoice(req.Voice)
	format := normalizeOpenAIFormat(req.Format)

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(c.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: format,
		Speed:          openai.Float(c.speed),
	}

	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(err)
		return &TTSResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			CharCount:     len(text),
			ExecutionTime: time.Since(start),
		}, err
	}
	defer resp.Body.Close()

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		err = &TransientError{Provider: OpenAITTSName, Message: "failed reading audio response", Err: err}
		return &TTSResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			CharCount:     len(text),
			ExecutionTime: time.Since(start),
		}, err
	}

	return &TTSResult{
		Success:       true,
		Audio:         audioBytes,
		Format:        openAIResultFormat(format),
		DurationMS:    estimateSpeechDurationMS(text),
		CharCount:     len(text),
		ExecutionTime: time.Since(start),
	}, nil
}

// ListVoices returns the built-in OpenAI TTS voice list.
func (c *OpenAITTSClient) ListVoices(_ context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(openAITTSVoices))
	for _, name := range openAITTSVoices {
		voices = append(voices, Voice{
			VoiceID: name,
			Name:    name,
		})
	}
	return voices, nil
}

func normalizeOpenAIFormat(format string) openai.AudioSpeechNewParamsResponseFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "mp3", "mp3_44100_128":
		return openai.AudioSpeechNewParamsResponseFormatMP3
	case "opus":
		return openai.AudioSpeechNewParamsResponseFormatOpus
	case "aac":
		return openai.AudioSpeechNewParamsResponseFormatAAC
	case "flac":
		return openai.AudioSpeechNewParamsResponseFormatFLAC
	case "wav":
		return openai.AudioSpeechNewParamsResponseFormatWAV
	case "pcm":
		return openai.AudioSpeechNewParamsResponseFormatPCM
	default:
		return openai.AudioSpeechNewParamsResponseFormatMP3
	}
}

func openAIResultFormat(format openai.AudioSpeechNewParamsResponseFormat) string {
	switch format {
	case openai.AudioSpeechNewParamsResponseFormatOpus:
		return "opus"
	case openai.AudioSpeechNewParamsResponseFormatAAC:
		return "aac"
	case openai.AudioSpeechNewParamsResponseFormatFLAC:
		return "flac"
	case openai.AudioSpeechNewParamsResponseFormatWAV:
		return "wav"
	case openai.AudioSpeechNewParamsResponseFormatPCM:
		return "wav"
	default:
		return "mp3"
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryAfter := time.Duration(0)
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return classifyHTTPError(OpenAITTSName, apiErr.StatusCode, apiErr.Message, retryAfter)
	}
	return &TransientError{Provider: OpenAITTSName, Message: "request failed", Err: err}
}

// Model returns the configured default model.
func (c *OpenAITTSClient) Model() string {
	return c.model
}

// Voice returns the configured default voice.
func (c *OpenAITTSClient) Voice() string {
	return c.voice
}

var _ TTSProvider = (*OpenAITTSClient)(nil)
