package generate

import (
	"strings"

	"github.com/pyre-llm/pyre/internal/domain"
)

// modelQuirk is a late-stage, model-specific hotfix applied after overlay
// resolution. Some model families reject a sampling temperature outright and
// some require non-streaming requests.
type modelQuirk struct {
	prefix        string
	noTemperature bool
	noStreaming   bool
}

var modelQuirks = []modelQuirk{
	{prefix: "o1", noTemperature: true, noStreaming: true},
	{prefix: "o3", noTemperature: true},
	{prefix: "o4", noTemperature: true},
}

// applyModelQuirks mutates cfg in place according to the quirk table.
func applyModelQuirks(cfg *domain.ModelConfig) {
	for _, q := range modelQuirks {
		if !strings.HasPrefix(cfg.ModelID, q.prefix) {
			continue
		}
		if q.noTemperature {
			cfg.Temperature = nil
		}
		if q.noStreaming {
			cfg.Stream = false
		}
	}
}

// buildModelConfig projects a resolved overlay onto the transport-facing
// model configuration.
func buildModelConfig(spec domain.ModelSpec, params Params, streaming bool) domain.ModelConfig {
	cfg := domain.ModelConfig{
		ModelID: spec.ID,
		Vendor:  spec.Vendor,
		Stream:  streaming,
		Params:  params,
	}

	if v, ok := params.Float64("temperature"); ok {
		cfg.Temperature = &v
	}
	if v, ok := params.Float64("top_p"); ok {
		cfg.TopP = &v
	}
	if v, ok := params.Int64("max_tokens"); ok {
		cfg.MaxTokens = v
	}

	return cfg
}
