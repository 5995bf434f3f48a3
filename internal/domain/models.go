package domain

import "time"

// StopReason records why a generation call stopped producing output.
type StopReason string

const (
	StopUnknown   StopReason = ""
	StopComplete  StopReason = "stop"
	StopLength    StopReason = "length"
	StopToolUse   StopReason = "tool_use"
	StopCancelled StopReason = "cancelled"
)

// Usage tracks token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Merge folds a later usage snapshot into this one. Vendors report prompt
// tokens once and completion tokens cumulatively, so non-zero fields win.
func (u *Usage) Merge(other Usage) {
	if other.PromptTokens > 0 {
		u.PromptTokens = other.PromptTokens
	}
	if other.CompletionTokens > 0 {
		u.CompletionTokens = other.CompletionTokens
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
}

// CostBreakdown is the USD cost of one call split by direction.
type CostBreakdown struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
	Total  float64 `json:"total"`
}

// ChatMessage is one turn of the request conversation.
type ChatMessage struct {
	Role    string `json:"role"` // user, assistant, system, tool
	Content string `json:"content"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Payload is the request content sent to the transport.
type Payload struct {
	System   string           `json:"system,omitempty"`
	Messages []ChatMessage    `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// CallContext names the purpose of a call for logging, metrics attribution
// and debug capture.
type CallContext struct {
	Purpose   string `json:"purpose"`
	Reference string `json:"reference"` // caller-supplied or generated correlation id
}

// ModelSpec is a parameter-registry entry: the model's identity, declared
// initial parameter values and pricing.
type ModelSpec struct {
	ID      string
	Vendor  string
	Initial map[string]any
	Pricing PricingConfig
}

// ModelConfig is the transport-facing resolved configuration for one call.
// Pointer fields distinguish "omit entirely" from zero values; model quirk
// hotfixes clear them late in resolution.
type ModelConfig struct {
	ModelID     string
	Vendor      string
	Temperature *float64
	TopP        *float64
	MaxTokens   int64
	Stream      bool
	Params      map[string]any // full resolved overlay, for transport extras
}

// GenRequest bundles everything a transport needs for one call.
type GenRequest struct {
	Config  ModelConfig
	Payload Payload
	Call    CallContext
	Stream  bool
	Trace   *DebugTrace // nil unless debug capture is enabled
}

// Record is the provenance attached to a completed generation for later
// persistence by collaborators.
type Record struct {
	ModelID    string        `json:"model_id"`
	Vendor     string        `json:"vendor"`
	Usage      Usage         `json:"usage"`
	Cost       CostBreakdown `json:"cost"`
	StopReason StopReason    `json:"stop_reason"`
	FinishTime time.Time     `json:"finish_time"`
}

// Message is the message-shaped result of a Tier-1 generation.
type Message struct {
	Fragments []Fragment `json:"fragments"`
	Record    Record     `json:"record"`
}
