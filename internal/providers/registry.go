package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds references to TTS providers and LLM clients.
// It supports config-driven instantiation and thread-safe access.
type Registry struct {
	mu         sync.RWMutex
	tts        map[string]TTSProvider
	llmClients map[string]LLMClient
	limiters   map[string]*RateLimiter
	logger     *slog.Logger
}

// TTSProviderConfig configures one TTS provider instance.
type TTSProviderConfig struct {
	Type      string // "elevenlabs" or "openai"
	APIKey    string
	Model     string
	Voice     string
	Format    string
	RateLimit float64
	Enabled   bool
}

// LLMProviderConfig configures one LLM client instance.
type LLMProviderConfig struct {
	Type    string // "openrouter"
	APIKey  string
	BaseURL string
	Model   string
	Enabled bool
}

// RegistryConfig is the full provider configuration.
type RegistryConfig struct {
	TTSProviders map[string]TTSProviderConfig
	LLMProviders map[string]LLMProviderConfig
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		tts:        make(map[string]TTSProvider),
		llmClients: make(map[string]LLMClient),
		limiters:   make(map[string]*RateLimiter),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// LoadFromConfig instantiates providers from configuration. Disabled entries
// are skipped. Unknown types are an error so misconfiguration fails fast.
func (r *Registry) LoadFromConfig(cfg RegistryConfig) error {
	for name, tc := range cfg.TTSProviders {
		if !tc.Enabled {
			continue
		}
		switch tc.Type {
		case ElevenLabsTTSName:
			r.RegisterTTS(name, NewElevenLabsTTSClient(ElevenLabsTTSConfig{
				APIKey:    tc.APIKey,
				Model:     tc.Model,
				Voice:     tc.Voice,
				Format:    tc.Format,
				RateLimit: tc.RateLimit,
			}))
		case OpenAITTSName:
			r.RegisterTTS(name, NewOpenAITTSClient(OpenAITTSConfig{
				APIKey:    tc.APIKey,
				Model:     tc.Model,
				Voice:     tc.Voice,
				RateLimit: tc.RateLimit,
			}))
		default:
			return fmt.Errorf("unknown TTS provider type: %s", tc.Type)
		}
	}

	for name, lc := range cfg.LLMProviders {
		if !lc.Enabled {
			continue
		}
		switch lc.Type {
		case OpenRouterName:
			r.RegisterLLM(name, NewOpenRouterClient(OpenRouterConfig{
				APIKey:       lc.APIKey,
				BaseURL:      lc.BaseURL,
				DefaultModel: lc.Model,
			}))
		default:
			return fmt.Errorf("unknown LLM provider type: %s", lc.Type)
		}
	}

	return nil
}

// RegisterTTS registers a TTS provider by name.
func (r *Registry) RegisterTTS(name string, provider TTSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = provider
	r.limiters[name] = NewRateLimiter(provider.RequestsPerSecond())
	if r.logger != nil {
		r.logger.Info("registered TTS provider", "name", name)
	}
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// GetTTS returns a TTS provider by name.
func (r *Registry) GetTTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.tts[name]
	if !ok {
		return nil, fmt.Errorf("TTS provider not found: %s", name)
	}
	return provider, nil
}

// GetLLM returns an LLM client by name. With a single registered client and
// an empty name, that client is returned.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" && len(r.llmClients) == 1 {
		for _, c := range r.llmClients {
			return c, nil
		}
	}
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// LimiterFor returns the rate limiter for a registered TTS provider.
func (r *Registry) LimiterFor(name string) *RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.limiters[name]; ok {
		return l
	}
	return nil
}

// ListTTS returns all registered TTS provider names.
func (r *Registry) ListTTS() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tts))
	for name := range r.tts {
		names = append(names, name)
	}
	return names
}

// WaitForTTS blocks on the provider's rate limiter before a synthesis call.
func (r *Registry) WaitForTTS(ctx context.Context, name string) error {
	limiter := r.LimiterFor(name)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// RecordRateLimit feeds a provider's throttling response back into its
// limiter so subsequent calls back off before attempting again.
func (r *Registry) RecordRateLimit(name string, retryAfter time.Duration) {
	if limiter := r.LimiterFor(name); limiter != nil {
		limiter.Record429(retryAfter)
	}
}
