// Package echo provides a testing transport that echoes back input messages.
// It implements the domain.Transport interface without making external API
// calls, providing deterministic particle streams for tests and development.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/observability"
)

const (
	transportName = "echo"
	modelName     = "echo-1"
	chunkDelay    = 10 * time.Millisecond
)

// Transport implements the domain.Transport interface for echo testing.
type Transport struct {
	name            string
	supportedModels map[string]bool
}

// NewTransport creates a new echo transport.
// No configuration is required as it operates entirely in-memory.
func NewTransport() *Transport {
	return &Transport{
		name: transportName,
		supportedModels: map[string]bool{
			modelName: true,
		},
	}
}

// Generate echoes the last user message back as a particle stream.
func (t *Transport) Generate(ctx context.Context, req *domain.GenRequest) (<-chan domain.Particle, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	if !t.supportedModels[req.Config.ModelID] {
		return nil, fmt.Errorf("model %s is not supported by echo transport", req.Config.ModelID)
	}

	input := lastUserContent(req.Payload)
	req.Trace.SetDispatch("echo://local", nil, input)

	logger := observability.FromContext(ctx)
	logger.Debug("echo transport generating", observability.Int("input_length", len(input)))

	particles := make(chan domain.Particle)

	go func() {
		defer close(particles)

		emit := func(p domain.Particle) bool {
			select {
			case <-ctx.Done():
				return false
			case particles <- p:
				return true
			}
		}

		if !emit(domain.Particle{Kind: domain.ParticleModel, Model: modelName}) {
			return
		}

		words := strings.SplitAfter(input, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			if req.Stream {
				time.Sleep(chunkDelay)
			}
			if !emit(domain.Particle{Kind: domain.ParticleText, Text: w}) {
				return
			}
		}

		tokens := len(words)
		emit(domain.Particle{Kind: domain.ParticleUsage, Usage: &domain.Usage{
			PromptTokens:     tokens,
			CompletionTokens: tokens,
			TotalTokens:      tokens * 2,
		}})
		emit(domain.Particle{Kind: domain.ParticleStopReason, StopReason: domain.StopComplete})
		emit(domain.Particle{Kind: domain.ParticleDone})
	}()

	return particles, nil
}

// Name returns the transport identifier.
func (t *Transport) Name() string {
	return t.name
}

// Supports checks if the transport supports the given model.
func (t *Transport) Supports(_ context.Context, model string) bool {
	return t.supportedModels[model]
}

func lastUserContent(payload domain.Payload) string {
	for i := len(payload.Messages) - 1; i >= 0; i-- {
		if payload.Messages[i].Role == "user" {
			return payload.Messages[i].Content
		}
	}
	return ""
}
