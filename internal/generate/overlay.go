// Package generate orchestrates streaming generation calls across three API
// tiers: the raw accumulator tier, the message-shaped tier and the text-only
// facade.
package generate

import (
	"github.com/pyre-llm/pyre/internal/domain"
)

// ModelParamKey is the parameter identifier reserved for the model reference.
// A per-call override may never redefine it.
const ModelParamKey = "model"

// Params is a resolved parameter overlay value set.
type Params map[string]any

// ResolveOverlay combines the four precedence layers of the parameter overlay
// (low to high): implicit runtime fallback, model-declared initial values,
// user per-model overrides, per-call overrides. Later layers fully shadow
// earlier ones per key. Any layer may be nil.
func ResolveOverlay(fallback, initial, user, perCall map[string]any) (Params, error) {
	if _, ok := perCall[ModelParamKey]; ok {
		return nil, domain.ErrModelOverride
	}

	out := make(Params)
	for _, layer := range []map[string]any{fallback, initial, user, perCall} {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out, nil
}

// Float64 reads a numeric parameter, accepting the integer shapes JSON and
// registry layers produce.
func (p Params) Float64(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Int64 reads an integer parameter.
func (p Params) Int64(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// String reads a string parameter.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Bool reads a boolean parameter.
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}
