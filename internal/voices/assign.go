package voices

import (
	"log/slog"
	"strings"
	"sync"

	"storyvox/internal/structure"
)

// Assigner holds the character-to-voice map for one book under one provider.
// Assignments are immutable once made.
type Assigner struct {
	mu sync.Mutex

	provider      string
	narratorVoice string
	pool          []PoolVoice
	assigned      map[string]string // lowercased character name -> voice ID
	used          map[string]bool   // voice IDs already cast
	rr            int               // round-robin cursor for undetermined characters
	logger        *slog.Logger
}

// NewAssigner creates an assigner for a book. narratorVoice is the book's
// configured narrator voice and is reserved: characters never receive it.
func NewAssigner(provider, narratorVoice string, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assigner{
		provider:      provider,
		narratorVoice: narratorVoice,
		pool:          PoolFor(provider),
		assigned:      make(map[string]string),
		used:          map[string]bool{narratorVoice: true},
		logger:        logger.With("component", "voices", "provider", provider),
	}
}

// Provider returns the provider this assigner casts for.
func (a *Assigner) Provider() string {
	return a.provider
}

// NarratorVoice returns the reserved narrator voice ID.
func (a *Assigner) NarratorVoice() string {
	return a.narratorVoice
}

// VoiceFor resolves a chunk's voice tag to a concrete voice ID. The narrator
// voice covers narration, empty tags, and unattributed dialogue. Named
// characters get a stable assignment from the pool, seeded by demographics
// when available and round-robin otherwise.
func (a *Assigner) VoiceFor(speaker string, char *structure.Character) string {
	name := strings.ToLower(strings.TrimSpace(speaker))
	if name == "" || name == structure.VoiceNarrator || name == structure.VoiceDialogue {
		return a.narratorVoice
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.assigned[name]; ok {
		return id
	}

	id := a.pick(char)
	a.assigned[name] = id
	a.used[id] = true
	a.logger.Debug("assigned voice", "character", speaker, "voice", id)
	return id
}

// pick chooses a voice for a new character. Preference order: an unused
// voice matching gender and age, an unused voice matching gender, any unused
// voice, then round-robin over the whole pool when every voice is cast.
func (a *Assigner) pick(char *structure.Character) string {
	if len(a.pool) == 0 {
		return a.narratorVoice
	}

	if char != nil && char.Gender != "" && char.Gender != "unknown" {
		for _, v := range a.pool {
			if !a.used[v.ID] && v.Gender == char.Gender && v.Age == poolAge(char.Age) {
				return v.ID
			}
		}
		for _, v := range a.pool {
			if !a.used[v.ID] && v.Gender == char.Gender {
				return v.ID
			}
		}
	}

	for i := 0; i < len(a.pool); i++ {
		v := a.pool[(a.rr+i)%len(a.pool)]
		if !a.used[v.ID] {
			a.rr = (a.rr + i + 1) % len(a.pool)
			return v.ID
		}
	}

	// Pool exhausted; reuse round-robin.
	v := a.pool[a.rr%len(a.pool)]
	a.rr = (a.rr + 1) % len(a.pool)
	return v.ID
}

// poolAge maps detector age brackets onto pool brackets. Children are cast
// with young voices; neither provider pool carries child voices.
func poolAge(age string) string {
	switch age {
	case "child", "young":
		return "young"
	case "elderly":
		return "elderly"
	default:
		return "adult"
	}
}

// Assignments returns a copy of the current character-to-voice map keyed by
// lowercased character name.
func (a *Assigner) Assignments() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]string, len(a.assigned))
	for k, v := range a.assigned {
		out[k] = v
	}
	return out
}

// Restore seeds the assigner with previously persisted assignments. Existing
// entries are never overwritten.
func (a *Assigner) Restore(assignments map[string]string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, id := range assignments {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := a.assigned[key]; ok {
			continue
		}
		a.assigned[key] = id
		a.used[id] = true
	}
}

// RestoreFrom seeds persisted assignments recorded under fromProvider. When
// the book has since moved to another provider, each voice is re-mapped by
// style through TranslateVoice; raw IDs from the old pool would otherwise
// all normalize to the new provider's default voice.
func (a *Assigner) RestoreFrom(fromProvider string, assignments map[string]string) {
	if fromProvider == "" || fromProvider == a.provider {
		a.Restore(assignments)
		return
	}

	translated := make(map[string]string, len(assignments))
	for name, id := range assignments {
		translated[name] = TranslateVoice(fromProvider, a.provider, id)
	}
	a.logger.Info("re-mapped persisted assignments",
		"from_provider", fromProvider, "characters", len(translated))
	a.Restore(translated)
}
