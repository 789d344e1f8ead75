// File: internal/llmclient/router.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"
)

// Tier names a model capability class. Decisions and assertions run on the
// powerful tier; cheap bulk work (scenario drafting, summaries) on the fast
// tier.
type Tier string

const (
	TierFast     Tier = "fast"
	TierPowerful Tier = "powerful"
)

// Router selects a client per tier, falling back to whatever is configured
// when a tier is missing.
type Router struct {
	clients map[Tier]LLMClient
	logger  *zap.Logger
}

// NewRouter builds a router over the configured clients. At least one tier
// must be present.
func NewRouter(clients map[Tier]LLMClient, logger *zap.Logger) (*Router, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("no LLM clients configured")
	}
	return &Router{clients: clients, logger: logger.Named("llm_router")}, nil
}

// Pick returns the client for a tier, degrading to the other tier when the
// requested one is not configured.
func (r *Router) Pick(tier Tier) LLMClient {
	if c, ok := r.clients[tier]; ok {
		return c
	}
	for other, c := range r.clients {
		r.logger.Debug("Requested model tier not configured, falling back",
			zap.String("requested", string(tier)), zap.String("using", string(other)))
		return c
	}
	return nil
}

// Factory builds tier clients from configuration. Only the Gemini provider
// is wired; the provider field exists so configs stay forward compatible.
func Factory(models map[string]ModelConfig, logger *zap.Logger) (map[Tier]LLMClient, error) {
	clients := make(map[Tier]LLMClient, len(models))
	for name, cfg := range models {
		tier := Tier(name)
		if tier != TierFast && tier != TierPowerful {
			return nil, fmt.Errorf("unknown model tier %q (want %q or %q)", name, TierFast, TierPowerful)
		}
		switch cfg.Provider {
		case "", "gemini":
			client, err := NewGeminiClient(cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("building %s client: %w", name, err)
			}
			clients[tier] = client
		default:
			return nil, fmt.Errorf("unsupported LLM provider %q for tier %q", cfg.Provider, name)
		}
	}
	return clients, nil
}
