package providers

import (
	"context"
	"fmt"
	"sync"
)

// MockTTSProvider is a scriptable TTS provider for tests. Errors are consumed
// in order from the Failures queue before successes are produced.
type MockTTSProvider struct {
	mu sync.Mutex

	ProviderName string
	Voices       []Voice
	DefaultVoice string
	Failures     []error // Consumed one per Generate call
	Calls        []TTSRequest
	Audio        []byte
}

// NewMockTTSProvider creates a mock provider with a small voice set.
func NewMockTTSProvider(name string) *MockTTSProvider {
	return &MockTTSProvider{
		ProviderName: name,
		DefaultVoice: "mock-default",
		Voices: []Voice{
			{VoiceID: "mock-default", Name: "Default"},
			{VoiceID: "mock-alt", Name: "Alt"},
		},
		Audio: []byte("mock-audio"),
	}
}

func (m *MockTTSProvider) Name() string {
	return m.ProviderName
}

func (m *MockTTSProvider) RequestsPerSecond() float64 {
	return 1000
}

func (m *MockTTSProvider) NormalizeVoice(voiceID string) string {
	for _, v := range m.Voices {
		if v.VoiceID == voiceID {
			return voiceID
		}
	}
	return m.DefaultVoice
}

func (m *MockTTSProvider) Generate(_ context.Context, req *TTSRequest) (*TTSResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req == nil || req.Text == "" {
		err := fmt.Errorf("text is required")
		return &TTSResult{Success: false, ErrorMessage: err.Error()}, err
	}

	m.Calls = append(m.Calls, *req)

	if len(m.Failures) > 0 {
		err := m.Failures[0]
		m.Failures = m.Failures[1:]
		return &TTSResult{Success: false, ErrorMessage: err.Error(), CharCount: len(req.Text)}, err
	}

	return &TTSResult{
		Success:    true,
		Audio:      m.Audio,
		Format:     "mp3",
		DurationMS: estimateSpeechDurationMS(req.Text),
		CharCount:  len(req.Text),
	}, nil
}

func (m *MockTTSProvider) ListVoices(_ context.Context) ([]Voice, error) {
	return m.Voices, nil
}

// CallCount returns how many Generate calls were recorded.
func (m *MockTTSProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ TTSProvider = (*MockTTSProvider)(nil)

// MockLLMClient is a scriptable LLM client for tests. Responses are consumed
// in order; when exhausted, Err (or a default error) is returned.
type MockLLMClient struct {
	mu sync.Mutex

	Responses []*ChatResult
	Err       error
	Requests  []*ChatRequest
}

func (m *MockLLMClient) Name() string {
	return "mock-llm"
}

func (m *MockLLMClient) Chat(_ context.Context, req *ChatRequest) (*ChatResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if len(m.Responses) > 0 {
		resp := m.Responses[0]
		m.Responses = m.Responses[1:]
		return resp, nil
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return nil, fmt.Errorf("mock LLM has no scripted responses")
}

var _ LLMClient = (*MockLLMClient)(nil)
