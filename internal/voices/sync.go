package voices

import (
	"context"
	"log/slog"

	"storyvox/internal/providers"
)

// VerifyPools checks each provider's curated pool against the voices its
// account actually exposes and logs any drift. Casting still works with a
// stale pool because the adapters substitute unknown voices with their
// default, but drift means characters quietly lose their distinct voices.
func VerifyPools(ctx context.Context, registry *providers.Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, name := range registry.ListTTS() {
		pool := PoolFor(name)
		if len(pool) == 0 {
			logger.Debug("no curated pool for provider", "provider", name)
			continue
		}

		client, err := registry.GetTTS(name)
		if err != nil {
			continue
		}
		live, err := client.ListVoices(ctx)
		if err != nil {
			logger.Warn("could not list provider voices", "provider", name, "error", err)
			continue
		}

		available := make(map[string]bool, len(live))
		for _, v := range live {
			available[v.VoiceID] = true
		}

		missing := 0
		for _, v := range pool {
			if !available[v.ID] {
				missing++
				logger.Warn("curated voice not available on provider",
					"provider", name, "voice", v.Name, "voice_id", v.ID)
			}
		}
		logger.Info("voice pool verified",
			"provider", name, "pool", len(pool), "missing", missing)
	}
}
