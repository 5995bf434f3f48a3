// Package openai provides a transport for the OpenAI Chat Completions API
// using the official SDK. It converts the SDK's streaming chunks into wire
// particles and maps SDK errors to the shared transport error categories so
// the retry layer can classify them.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/observability"
	"github.com/pyre-llm/pyre/internal/transport"
)

const transportName = "openai"

// modelPrefixes are the model-id families served by this transport.
var modelPrefixes = []string{"gpt-", "chatgpt-", "o1", "o3", "o4"}

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so complete tool call fragments can be emitted once a finish reason arrives.
type aggCall struct{ id, name, args string }

// Transport implements the domain.Transport interface for OpenAI.
type Transport struct {
	client  openai.Client
	baseURL string
	name    string
}

// NewTransport creates a new OpenAI transport.
func NewTransport(config Config) (*Transport, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
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
		client:  openai.NewClient(opts...),
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
	for _, prefix := range modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
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

	logger.Debug("calling OpenAI API")
	resp, err := t.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, t.mapError(err)
	}

	particles := make(chan domain.Particle)
	go func() {
		defer close(particles)
		emit := emitter(ctx, particles)

		if !emit(domain.Particle{Kind: domain.ParticleModel, Model: string(resp.Model)}) {
			return
		}
		if len(resp.Choices) > 0 {
			choice := resp.Choices[0]
			if choice.Message.Content != "" {
				if !emit(domain.Particle{Kind: domain.ParticleText, Text: choice.Message.Content}) {
					return
				}
			}
			for _, tc := range choice.Message.ToolCalls {
				if !emit(domain.Particle{Kind: domain.ParticleFragment, Fragment: domain.ToolCallFragment{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}}) {
					return
				}
			}
			emit(domain.Particle{Kind: domain.ParticleStopReason, StopReason: mapStopReason(choice.FinishReason)})
		}
		emit(domain.Particle{Kind: domain.ParticleUsage, Usage: &domain.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}})
		emit(domain.Particle{Kind: domain.ParticleDone})
	}()

	return particles, nil
}

// generateStreaming adapts the SSE chunk stream into particles.
func (t *Transport) generateStreaming(
	ctx context.Context,
	req *domain.GenRequest,
	params openai.ChatCompletionNewParams,
) (<-chan domain.Particle, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenAI streaming API")

	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := t.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		logger.Error("OpenAI stream open failed", observability.Error(err))
		return nil, t.mapError(err)
	}

	particles := make(chan domain.Particle)

	go func() {
		defer close(particles)
		defer func() { _ = stream.Close() }()

		emit := emitter(ctx, particles)
		toolAgg := map[int64]*aggCall{}
		modelSent := false

		for stream.Next() {
			chunk := stream.Current()

			if !modelSent && chunk.Model != "" {
				modelSent = true
				if !emit(domain.Particle{Kind: domain.ParticleModel, Model: string(chunk.Model)}) {
					return
				}
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					if !emit(domain.Particle{Kind: domain.ParticleText, Text: choice.Delta.Content}) {
						return
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := toolAgg[tc.Index]
					if !ok {
						ac = &aggCall{}
						toolAgg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					if tc.Function.Arguments != "" {
						ac.args += tc.Function.Arguments
					}
				}
				if choice.FinishReason != "" {
					for _, ac := range toolAgg {
						if !emit(domain.Particle{Kind: domain.ParticleFragment, Fragment: domain.ToolCallFragment{
							ID:        ac.id,
							Name:      ac.name,
							Arguments: ac.args,
						}}) {
							return
						}
					}
					toolAgg = map[int64]*aggCall{}
					if !emit(domain.Particle{Kind: domain.ParticleStopReason, StopReason: mapStopReason(choice.FinishReason)}) {
						return
					}
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				if !emit(domain.Particle{Kind: domain.ParticleUsage, Usage: &domain.Usage{
					PromptTokens:     int(chunk.Usage.PromptTokens),
					CompletionTokens: int(chunk.Usage.CompletionTokens),
					TotalTokens:      int(chunk.Usage.TotalTokens),
				}}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			logger.Error("OpenAI stream error", observability.Error(err))
			emit(domain.Particle{Kind: domain.ParticleError, Message: "OpenAI stream error: " + err.Error()})
			return
		}
		emit(domain.Particle{Kind: domain.ParticleDone})
	}()

	return particles, nil
}

// buildParams converts the generation request to SDK parameters.
func (t *Transport) buildParams(req *domain.GenRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Payload.System != "" {
		messages = append(messages, openai.SystemMessage(req.Payload.System))
	}
	for _, msg := range req.Payload.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			// Unknown roles degrade to user messages.
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Config.ModelID),
		Messages: messages,
	}

	if req.Config.Temperature != nil {
		params.Temperature = openai.Float(*req.Config.Temperature)
	}
	if req.Config.TopP != nil {
		params.TopP = openai.Float(*req.Config.TopP)
	}
	if req.Config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.Config.MaxTokens)
	}

	if len(req.Payload.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Payload.Tools))
		for i, tdef := range req.Payload.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	return params
}

// captureDispatch records the outgoing call for the debug sink, with
// credentials redacted.
func (t *Transport) captureDispatch(req *domain.GenRequest, params openai.ChatCompletionNewParams) {
	if req.Trace == nil {
		return
	}
	body := ""
	if data, err := json.Marshal(params); err == nil {
		body = string(data)
	}
	req.Trace.SetDispatch(t.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer [redacted]",
		"Content-Type":  "application/json",
	}, body)
}

// mapError converts SDK errors to the shared transport error categories.
func (t *Transport) mapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &transport.StatusError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Message,
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &transport.ConnError{Cause: err}
}

func mapStopReason(reason string) domain.StopReason {
	switch reason {
	case "stop":
		return domain.StopComplete
	case "length":
		return domain.StopLength
	case "tool_calls", "function_call":
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
