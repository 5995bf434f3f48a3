// Package anthropic provides a transport for the Anthropic Messages API using
// the official SDK. Streaming events are translated into wire particles and
// SDK errors are mapped to the shared transport error categories.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/observability"
	"github.com/pyre-llm/pyre/internal/transport"
)

const transportName = "anthropic"

// The Messages API requires an explicit completion budget.
const defaultMaxTokens = 4096

// Transport implements the domain.Transport interface for Anthropic.
type Transport struct {
	client  anthropic.Client
	baseURL string
	name    string
}

// NewTransport creates a new Anthropic transport.
func NewTransport(config Config) (*Transport, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// The pipeline's own scheduler owns retries.
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Transport{
		client:  anthropic.NewClient(opts...),
		baseURL: config.BaseURL,
		name:    transportName,
	}, nil
}

// Name returns the transport identifier.
func (t *Transport) Name() string {
	return t.name
}

// Supports checks if the transport serves the given model family.
func (t *Transport) Supports(_ context.Context, model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// Generate opens the call and returns the particle stream.
func (t *Transport) Generate(ctx context.Context, req *domain.GenRequest) (<-chan domain.Particle, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	params := t.buildParams(req)
	t.captureDispatch(req, params)

	if req.Stream {
		return t.generateStreaming(ctx, req, params)
	}

	logger.Debug("calling Anthropic API")
	resp, err := t.client.Messages.New(ctx, params)
	if err != nil {
		logger.Error("Anthropic API call failed", observability.Error(err))
		return nil, t.mapError(err)
	}

	particles := make(chan domain.Particle)
	go func() {
		defer close(particles)
		emit := emitter(ctx, particles)

		if !emit(domain.Particle{Kind: domain.ParticleModel, Model: string(resp.Model)}) {
			return
		}
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				textBlock := block.AsText()
				if textBlock.Text == "" {
					continue
				}
				if !emit(domain.Particle{Kind: domain.ParticleText, Text: textBlock.Text}) {
					return
				}
				// Blocks are distinct fragments; keep adjacent ones from
				// coalescing downstream.
				if !emit(domain.Particle{Kind: domain.ParticleBoundary}) {
					return
				}
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := ""
				if data, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(data)
				}
				if !emit(domain.Particle{Kind: domain.ParticleFragment, Fragment: domain.ToolCallFragment{
					ID:        toolBlock.ID,
					Name:      toolBlock.Name,
					Arguments: args,
				}}) {
					return
				}
			}
		}
		if !emit(domain.Particle{Kind: domain.ParticleStopReason, StopReason: mapStopReason(string(resp.StopReason))}) {
			return
		}
		emit(domain.Particle{Kind: domain.ParticleUsage, Usage: &domain.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}})
		emit(domain.Particle{Kind: domain.ParticleDone})
	}()

	return particles, nil
}

// generateStreaming adapts the Messages event stream into particles.
func (t *Transport) generateStreaming(
	ctx context.Context,
	req *domain.GenRequest,
	params anthropic.MessageNewParams,
) (<-chan domain.Particle, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling Anthropic streaming API")

	stream := t.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		logger.Error("Anthropic stream open failed", observability.Error(err))
		return nil, t.mapError(err)
	}

	particles := make(chan domain.Particle)

	go func() {
		defer close(particles)
		defer func() { _ = stream.Close() }()

		emit := emitter(ctx, particles)

		var inputTokens int64
		var pendingTool *domain.ToolCallFragment
		var toolArgs strings.Builder

		for stream.Next() {
			event := stream.Current()

			switch ev := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				inputTokens = ev.Message.Usage.InputTokens
				if !emit(domain.Particle{Kind: domain.ParticleModel, Model: string(ev.Message.Model)}) {
					return
				}
			case anthropic.ContentBlockStartEvent:
				if block, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					pendingTool = &domain.ToolCallFragment{ID: block.ID, Name: block.Name}
					toolArgs.Reset()
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					if !emit(domain.Particle{Kind: domain.ParticleText, Text: delta.Text}) {
						return
					}
				case anthropic.InputJSONDelta:
					toolArgs.WriteString(delta.PartialJSON)
				}
			case anthropic.ContentBlockStopEvent:
				if pendingTool == nil {
					// A text block just ended; close it so the next block
					// starts a fresh fragment.
					if !emit(domain.Particle{Kind: domain.ParticleBoundary}) {
						return
					}
					continue
				}
				pendingTool.Arguments = toolArgs.String()
				done := !emit(domain.Particle{Kind: domain.ParticleFragment, Fragment: *pendingTool})
				pendingTool = nil
				if done {
					return
				}
			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					if !emit(domain.Particle{Kind: domain.ParticleStopReason, StopReason: mapStopReason(string(ev.Delta.StopReason))}) {
						return
					}
				}
				if ev.Usage.OutputTokens > 0 {
					if !emit(domain.Particle{Kind: domain.ParticleUsage, Usage: &domain.Usage{
						PromptTokens:     int(inputTokens),
						CompletionTokens: int(ev.Usage.OutputTokens),
						TotalTokens:      int(inputTokens + ev.Usage.OutputTokens),
					}}) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			logger.Error("Anthropic stream error", observability.Error(err))
			emit(domain.Particle{Kind: domain.ParticleError, Message: "Anthropic stream error: " + err.Error()})
			return
		}
		emit(domain.Particle{Kind: domain.ParticleDone})
	}()

	return particles, nil
}

// buildParams converts the generation request to SDK parameters.
func (t *Transport) buildParams(req *domain.GenRequest) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	for _, msg := range req.Payload.Messages {
		switch msg.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := req.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Config.ModelID),
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if req.Payload.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Payload.System}}
	}
	if req.Config.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Config.Temperature)
	}
	if req.Config.TopP != nil {
		params.TopP = anthropic.Float(*req.Config.TopP)
	}
	if len(req.Payload.Tools) > 0 {
		params.Tools = buildTools(req.Payload.Tools)
	}

	return params
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(defs []domain.ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if def.Parameters != nil {
			if properties, ok := def.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			if required, ok := def.Parameters["required"].([]any); ok {
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(schema, def.Name)
	}
	return tools
}

// captureDispatch records the outgoing call for the debug sink, with
// credentials redacted.
func (t *Transport) captureDispatch(req *domain.GenRequest, params anthropic.MessageNewParams) {
	if req.Trace == nil {
		return
	}
	body := ""
	if data, err := json.Marshal(params); err == nil {
		body = string(data)
	}
	req.Trace.SetDispatch(t.baseURL+"/v1/messages", map[string]string{
		"X-Api-Key":    "[redacted]",
		"Content-Type": "application/json",
	}, body)
}

// mapError converts SDK errors to the shared transport error categories.
func (t *Transport) mapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &transport.StatusError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &transport.ConnError{Cause: err}
}

func mapStopReason(reason string) domain.StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return domain.StopComplete
	case "max_tokens":
		return domain.StopLength
	case "tool_use":
		return domain.StopToolUse
	default:
		return domain.StopReason(reason)
	}
}

// emitter wraps the particle channel send with prompt cancellation.
func emitter(ctx context.Context, particles chan<- domain.Particle) func(domain.Particle) bool {
	return func(p domain.Particle) bool {
		select {
		case <-ctx.Done():
			return false
		case particles <- p:
			return true
		}
	}
}
