package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	ElevenLabsTTSName      = "elevenlabs"
	ElevenLabsAPIBaseURL   = "https://api.elevenlabs.io/v1"
	ElevenLabsDefaultModel = "eleven_turbo_v2_5"
	ElevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
)

// elevenLabsKnownVoices is the curated premade voice set used for validation.
// Voice IDs derived by cross-provider mapping may not exist here; they are
// substituted with the client default instead of failing the request.
var elevenLabsKnownVoices = map[string]string{
	"21m00Tcm4TlvDq8ikWAM": "Rachel",
	"AZnzlk1XvdvUeBnXmlld": "Domi",
	"EXAVITQu4vr4xnSDxMaL": "Bella",
	"ErXwobaYiN019PkySvjV": "Antoni",
	"MF3mGyEYCl7XYWbV9V6O": "Elli",
	"TxGEqnHWrfWFTfGW9XjX": "Josh",
	"VR6AewLTigWG4xSOukaG": "Arnold",
	"pNInz6obpgDQGcFmaJgB": "Adam",
	"yoZ06aMxZJJ28mfd3POQ": "Sam",
	"ThT5KcBeYPX3keUQqHPh": "Dorothy",
	"IKne3meq5aSn9XLyUdCD": "Charlie",
	"JBFqnCBsd6RMkjVDRZzb": "George",
	"XB0fDUnXU5powFXDhCwa": "Charlotte",
	"onwK4e9ZLuTAKqWW03F9": "Daniel",
}

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS client.
type ElevenLabsTTSConfig struct {
	APIKey    string
	BaseURL   string // Optional (tests)
	Model     string // e.g., "eleven_multilingual_v2", "eleven_turbo_v2_5"
	Voice     string // Default voice ID
	Format    string // Output format: mp3_44100_128, mp3_22050_32, pcm_16000, etc.
	Timeout   time.Duration
	RateLimit float64 // Requests per second
}

// ElevenLabsTTSClient implements TTSProvider using the ElevenLabs API.
// Emotion hints are mapped onto voice stability/style settings.
type ElevenLabsTTSClient struct {
	apiKey    string
	baseURL   string
	model     string
	voice     string
	format    string
	rateLimit float64
	client    *http.Client
}

// NewElevenLabsTTSClient creates a new ElevenLabs TTS client.
func NewElevenLabsTTSClient(cfg ElevenLabsTTSConfig) *ElevenLabsTTSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = ElevenLabsAPIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = ElevenLabsDefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = ElevenLabsDefaultVoice
	}
	if cfg.Format == "" {
		cfg.Format = "mp3_44100_128"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second // TTS can be slow for long text
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10.0
	}

	return &ElevenLabsTTSClient{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		voice:     cfg.Voice,
		format:    cfg.Format,
		rateLimit: cfg.RateLimit,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *ElevenLabsTTSClient) Name() string {
	return ElevenLabsTTSName
}

// RequestsPerSecond returns the rate limit.
func (c *ElevenLabsTTSClient) RequestsPerSecond() float64 {
	return c.rateLimit
}

// NormalizeVoice validates a voice ID against the known set, substituting the
// client default for unknown IDs.
func (c *ElevenLabsTTSClient) NormalizeVoice(voiceID string) string {
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return c.voice
	}
	if _, ok := elevenLabsKnownVoices[voiceID]; ok {
		return voiceID
	}
	return c.voice
}

// Generate converts text to audio using the ElevenLabs API.
func (c *ElevenLabsTTSClient) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	start := time.Now()

	if req == nil || strings.TrimSpace(req.Text) == "" {
		err := fmt.Errorf("text is required")
		return &TTSResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			ExecutionTime: time.Since(start),
		}, err
	}

	voice := c.NormalizeVoice(req.Voice)
	format := req.Format
	if format == "" {
		format = c.format
	}

	ttsReq := elevenLabsTTSRequest{
		Text:          req.Text,
		ModelID:       c.model,
		VoiceSettings: settingsForEmotion(req.Emotion),
	}

	audioBytes, err := c.doRequest(ctx, voice, format, ttsReq)
	if err != nil {
		return &TTSResult{
			Success:       false,
			ErrorMessage:  err.Error(),
			CharCount:     len(req.Text),
			ExecutionTime: time.Since(start),
		}, err
	}

	container, sampleRate := parseOutputFormat(format)

	return &TTSResult{
		Success:       true,
		Audio:         audioBytes,
		Format:        container,
		SampleRate:    sampleRate,
		DurationMS:    estimateSpeechDurationMS(req.Text),
		CharCount:     len(req.Text),
		ExecutionTime: time.Since(start),
	}, nil
}

// doRequest makes an HTTP request to the ElevenLabs TTS API.
func (c *ElevenLabsTTSClient) doRequest(ctx context.Context, voiceID, format string, body elevenLabsTTSRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", c.baseURL, voiceID, format)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: ElevenLabsTTSName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: ElevenLabsTTSName, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp elevenLabsErrorResponse
		errMsg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Detail.Message != "" {
			errMsg = errResp.Detail.Message
		}
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, classifyHTTPError(ElevenLabsTTSName, resp.StatusCode, errMsg, retryAfter)
	}

	return respBody, nil
}

// ListVoices retrieves available voices from ElevenLabs.
func (c *ElevenLabsTTSClient) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransientError{Provider: ElevenLabsTTSName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, classifyHTTPError(ElevenLabsTTSName, resp.StatusCode, string(body), parseRetryAfter(resp.Header.Get("Retry-After")))
	}

	var result elevenLabsVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		voices = append(voices, Voice{
			VoiceID:     v.VoiceID,
			Name:        v.Name,
			Description: v.Description,
		})
	}

	return voices, nil
}

// settingsForEmotion maps an emotion hint onto ElevenLabs voice settings.
// Lower stability and higher style exaggerate delivery; calm emotions pin
// stability high for an even read.
func settingsForEmotion(emotion string) elevenLabsVoiceSettings {
	s := elevenLabsVoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0.0,
		UseSpeakerBoost: true,
	}

	switch strings.ToLower(strings.TrimSpace(emotion)) {
	case "angry", "fearful", "excited":
		s.Stability = 0.3
		s.Style = 0.6
	case "tense", "mysterious":
		s.Stability = 0.4
		s.Style = 0.4
	case "joyful", "romantic", "warm":
		s.Stability = 0.45
		s.Style = 0.3
	case "sad":
		s.Stability = 0.55
		s.Style = 0.25
	case "contemplative", "cold":
		s.Stability = 0.7
		s.Style = 0.1
	}

	return s
}

// estimateSpeechDurationMS approximates narration length at 150 words/minute.
func estimateSpeechDurationMS(text string) int {
	words := len(strings.Fields(text))
	return words * 60 * 1000 / 150
}

// ElevenLabs API types

type elevenLabsTTSRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

// parseOutputFormat extracts container format and sample rate from output_format.
// Examples: mp3_44100_128 -> (mp3, 44100), pcm_16000 -> (wav, 16000).
func parseOutputFormat(format string) (container string, sampleRate int) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return "mp3", 0
	}

	parts := strings.Split(format, "_")
	container = parts[0]
	if container == "pcm" || container == "ulaw" || container == "alaw" {
		container = "wav"
	}

	if len(parts) >= 2 {
		if sr, err := strconv.Atoi(parts[1]); err == nil {
			sampleRate = sr
		}
	}

	return container, sampleRate
}

type elevenLabsErrorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

type elevenLabsVoicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

type elevenLabsVoice struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Verify interface
var _ TTSProvider = (*ElevenLabsTTSClient)(nil)
