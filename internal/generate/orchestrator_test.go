package generate_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/generate"
	"github.com/pyre-llm/pyre/internal/retry"
	"github.com/pyre-llm/pyre/internal/transport"
	"github.com/pyre-llm/pyre/internal/transport/registry"
)

// scriptedTransport replays a fixed particle sequence, optionally failing the
// first openFailures calls synchronously.
type scriptedTransport struct {
	mu           sync.Mutex
	particles    []domain.Particle
	openErr      error
	openFailures int
	calls        int
}

func (s *scriptedTransport) Name() string { return "mock" }

func (s *scriptedTransport) Supports(_ context.Context, model string) bool {
	return strings.HasPrefix(model, "mock")
}

func (s *scriptedTransport) Generate(_ context.Context, _ *domain.GenRequest) (<-chan domain.Particle, error) {
	s.mu.Lock()
	s.calls++
	if s.openFailures > 0 {
		s.openFailures--
		s.mu.Unlock()
		return nil, s.openErr
	}
	s.mu.Unlock()

	out := make(chan domain.Particle, len(s.particles))
	for _, p := range s.particles {
		out <- p
	}
	close(out)
	return out, nil
}

// fakeCache is an in-memory domain.ResponseCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.Message
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.Message{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return msg, nil
}

func (c *fakeCache) Set(_ context.Context, key string, msg *domain.Message, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = msg
	c.sets++
	return nil
}

var completeScript = []domain.Particle{
	{Kind: domain.ParticleModel, Model: "mock-1-0125"},
	{Kind: domain.ParticleText, Text: "Hello"},
	{Kind: domain.ParticleText, Text: " world"},
	{Kind: domain.ParticleUsage, Usage: &domain.Usage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500}},
	{Kind: domain.ParticleStopReason, StopReason: domain.StopComplete},
	{Kind: domain.ParticleDone},
}

func newTestOrchestrator(
	t *testing.T,
	mock *scriptedTransport,
	opts ...generate.Option,
) (*generate.Orchestrator, *domain.MetricsAggregator) {
	t.Helper()
	ctx := context.Background()

	transports := registry.NewRegistry()
	require.NoError(t, transports.Register(ctx, mock))

	models := domain.NewInMemoryModelRegistry()
	require.NoError(t, models.Register(ctx, domain.ModelSpec{
		ID:      "mock-1",
		Vendor:  "mock",
		Initial: map[string]any{"temperature": 0.7},
		Pricing: domain.PricingConfig{InputCostPer1K: 0.01, OutputCostPer1K: 0.02},
	}))

	metrics := domain.NewMetricsAggregator()
	cost := domain.NewStandardCostCalculator(models)

	return generate.NewOrchestrator(transports, models, cost, metrics, opts...), metrics
}

// fastScheduler retries everything with negligible delays.
func fastScheduler() *retry.Scheduler {
	profile := retry.Profile{
		Name:        "test",
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Jitter:      0,
		MaxAttempts: 3,
	}
	return retry.NewScheduler(
		retry.WithClassifier(func(err error) *retry.Profile {
			if err == nil {
				return nil
			}
			return &profile
		}),
		retry.WithJitterSource(func() float64 { return 0 }),
	)
}

func TestOrchestrator_Message(t *testing.T) {
	ctx := context.Background()

	t.Run("complete call produces message, cost and metrics", func(t *testing.T) {
		mock := &scriptedTransport{particles: completeScript}
		orch, metrics := newTestOrchestrator(t, mock)

		var pendings, finals int
		msg, err := orch.Message(ctx, generate.MessageRequest{
			Model:   "mock-1",
			Payload: domain.Payload{Messages: []domain.ChatMessage{{Role: "user", Content: "hi"}}},
			Call:    domain.CallContext{Purpose: "summarize"},
			OnProgress: func(acc *domain.Accumulator, done bool) {
				if done {
					finals++
				} else if len(acc.Fragments) == 0 {
					pendings++
				}
			},
		})
		require.NoError(t, err)

		require.Equal(t, []domain.Fragment{domain.TextFragment{Text: "Hello world"}}, msg.Fragments)
		require.Equal(t, "mock-1-0125", msg.Record.ModelID, "vendor-resolved name wins")
		require.Equal(t, "mock", msg.Record.Vendor)
		require.Equal(t, domain.StopComplete, msg.Record.StopReason)
		require.Equal(t, 1500, msg.Record.Usage.TotalTokens)
		// (1000/1000)*0.01 + (500/1000)*0.02
		require.InDelta(t, 0.02, msg.Record.Cost.Total, 1e-9)
		require.False(t, msg.Record.FinishTime.IsZero())

		require.Equal(t, 1, finals, "exactly one terminal notification")
		require.GreaterOrEqual(t, pendings, 1, "pending notification before the call")

		byModel := metrics.SnapshotByModel()
		require.Contains(t, byModel, "mock-1")
		require.Equal(t, int64(1), byModel["mock-1"].Calls)
		require.Equal(t, int64(1000), byModel["mock-1"].PromptTokens)
		require.Equal(t, int64(500), byModel["mock-1"].CompletionTokens)
		require.InDelta(t, 0.02, byModel["mock-1"].Cost, 1e-9)
		bySource := metrics.SnapshotBySource()
		require.Contains(t, bySource, "summarize")
	})

	t.Run("unknown model fails resolution", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: completeScript})
		_, err := orch.Message(ctx, generate.MessageRequest{Model: "nope-1"})
		require.Error(t, err)
	})

	t.Run("per-call model override is rejected", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: completeScript})
		_, err := orch.Message(ctx, generate.MessageRequest{
			Model:     "mock-1",
			Overrides: map[string]any{"model": "other"},
		})
		require.ErrorIs(t, err, domain.ErrModelOverride)
	})

	t.Run("rate limit hook rejection stops the call", func(t *testing.T) {
		mock := &scriptedTransport{particles: completeScript}
		denied := errors.New("budget exhausted")
		orch, _ := newTestOrchestrator(t, mock,
			generate.WithRateLimitHook(func(context.Context, string) error { return denied }))

		_, err := orch.Message(ctx, generate.MessageRequest{Model: "mock-1"})
		require.ErrorIs(t, err, denied)
		require.Zero(t, mock.calls, "transport must not be invoked")
	})

	t.Run("transport failure becomes an excepted message, not an error", func(t *testing.T) {
		mock := &scriptedTransport{
			openErr:      &transport.StatusError{StatusCode: 401, Message: "bad key"},
			openFailures: 1,
		}
		orch, _ := newTestOrchestrator(t, mock)

		msg, err := orch.Message(ctx, generate.MessageRequest{Model: "mock-1"})
		require.NoError(t, err)
		require.Len(t, msg.Fragments, 1)
		ef, ok := msg.Fragments[0].(domain.ErrorFragment)
		require.True(t, ok)
		require.Contains(t, ef.Message, "bad key")
	})

	t.Run("retryable open failure recovers", func(t *testing.T) {
		mock := &scriptedTransport{
			particles:    completeScript,
			openErr:      &transport.StatusError{StatusCode: 503},
			openFailures: 2,
		}
		orch, _ := newTestOrchestrator(t, mock, generate.WithScheduler(fastScheduler()))

		var retries int
		msg, err := orch.Message(ctx, generate.MessageRequest{
			Model:   "mock-1",
			OnRetry: func(retry.Attempt) { retries++ },
		})
		require.NoError(t, err)
		require.Equal(t, 3, mock.calls)
		require.Equal(t, 2, retries)
		require.Equal(t, []domain.Fragment{domain.TextFragment{Text: "Hello world"}}, msg.Fragments)
	})

	t.Run("completed non-streaming calls populate and hit the cache", func(t *testing.T) {
		mock := &scriptedTransport{particles: completeScript}
		cache := newFakeCache()
		orch, _ := newTestOrchestrator(t, mock, generate.WithCache(cache))

		req := generate.MessageRequest{
			Model:   "mock-1",
			Payload: domain.Payload{Messages: []domain.ChatMessage{{Role: "user", Content: "same"}}},
		}

		first, err := orch.Message(ctx, req)
		require.NoError(t, err)
		require.Equal(t, 1, cache.sets)

		var finals int
		req.OnProgress = func(_ *domain.Accumulator, done bool) {
			if done {
				finals++
			}
		}
		second, err := orch.Message(ctx, req)
		require.NoError(t, err)
		require.Equal(t, 1, mock.calls, "second call served from cache")
		require.Equal(t, first.Fragments, second.Fragments)
		require.Equal(t, 1, finals, "cache hit still delivers one terminal notification")
	})

	t.Run("failed calls are not cached", func(t *testing.T) {
		mock := &scriptedTransport{
			openErr:      &transport.StatusError{StatusCode: 400},
			openFailures: 1,
		}
		cache := newFakeCache()
		orch, _ := newTestOrchestrator(t, mock, generate.WithCache(cache))

		_, err := orch.Message(ctx, generate.MessageRequest{Model: "mock-1"})
		require.NoError(t, err)
		require.Zero(t, cache.sets)
	})
}

func TestOrchestrator_Text(t *testing.T) {
	ctx := context.Background()

	t.Run("returns flattened text", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: completeScript})

		var streamed []string
		text, err := orch.Text(ctx, generate.TextRequest{
			Model:  "mock-1",
			Prompt: "say hello",
			OnText: func(partial string, done bool) {
				if done {
					streamed = append(streamed, partial)
				}
			},
		})
		require.NoError(t, err)
		require.Equal(t, "Hello world", text)
		require.Equal(t, []string{"Hello world"}, streamed)
	})

	t.Run("tool call fragment violates the text-only contract", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: []domain.Particle{
			{Kind: domain.ParticleText, Text: "let me check"},
			{Kind: domain.ParticleFragment, Fragment: domain.ToolCallFragment{ID: "t1", Name: "search"}},
			{Kind: domain.ParticleDone},
		}})

		_, err := orch.Text(ctx, generate.TextRequest{Model: "mock-1", Prompt: "go"})
		require.ErrorIs(t, err, domain.ErrToolCallInText)
	})

	t.Run("in-band error content surfaces as upstream error", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: []domain.Particle{
			{Kind: domain.ParticleError, Message: "model overloaded"},
			{Kind: domain.ParticleDone},
		}})

		_, err := orch.Text(ctx, generate.TextRequest{Model: "mock-1", Prompt: "go"})
		require.ErrorIs(t, err, domain.ErrUpstream)
		require.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("empty completed result is an error", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: []domain.Particle{
			{Kind: domain.ParticleStopReason, StopReason: domain.StopComplete},
			{Kind: domain.ParticleDone},
		}})

		_, err := orch.Text(ctx, generate.TextRequest{Model: "mock-1", Prompt: "go"})
		require.ErrorIs(t, err, domain.ErrEmptyResult)
	})

	t.Run("cancelled call is re-raised as context cancellation", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: []domain.Particle{
			{Kind: domain.ParticleText, Text: "part"},
			{Kind: domain.ParticleStopReason, StopReason: domain.StopCancelled},
			{Kind: domain.ParticleDone},
		}})

		_, err := orch.Text(ctx, generate.TextRequest{Model: "mock-1", Prompt: "go"})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("history and system prompt form the payload", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: completeScript})

		text, err := orch.Text(ctx, generate.TextRequest{
			Model:  "mock-1",
			System: "be terse",
			History: []domain.ChatMessage{
				{Role: "user", Content: "earlier"},
				{Role: "assistant", Content: "noted"},
			},
			Prompt: "now",
		})
		require.NoError(t, err)
		require.Equal(t, "Hello world", text)
	})

	t.Run("caller history is never mutated", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{particles: completeScript})

		history := make([]domain.ChatMessage, 1, 2)
		history[0] = domain.ChatMessage{Role: "user", Content: "earlier"}

		_, err := orch.Text(ctx, generate.TextRequest{
			Model:   "mock-1",
			History: history,
			Prompt:  "now",
		})
		require.NoError(t, err)

		require.Equal(t, []domain.ChatMessage{{Role: "user", Content: "earlier"}}, history)
		require.Equal(t, domain.ChatMessage{}, history[:cap(history)][1],
			"spare capacity of the caller's slice stays untouched")
	})
}

func TestOrchestrator_Raw(t *testing.T) {
	ctx := context.Background()

	t.Run("cancellation before the call aborts cleanly", func(t *testing.T) {
		mock := &scriptedTransport{
			openErr:      &transport.ConnError{Cause: errors.New("refused")},
			openFailures: 1,
		}
		orch, _ := newTestOrchestrator(t, mock, generate.WithScheduler(fastScheduler()))

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		acc, err := orch.Raw(cctx, generate.RawRequest{
			Config: domain.ModelConfig{ModelID: "mock-1", Vendor: "mock"},
		})
		require.NoError(t, err)
		require.Equal(t, domain.StateAborted, acc.State())
		require.Equal(t, domain.StopCancelled, acc.StopReason)
		require.Empty(t, acc.Fragments)
	})

	t.Run("unknown vendor is an internal error", func(t *testing.T) {
		orch, _ := newTestOrchestrator(t, &scriptedTransport{})
		_, err := orch.Raw(ctx, generate.RawRequest{
			Config: domain.ModelConfig{ModelID: "m", Vendor: "absent"},
		})
		require.Error(t, err)
	})

	t.Run("progress decimation honors the parallelism hint", func(t *testing.T) {
		particles := []domain.Particle{{Kind: domain.ParticleModel, Model: "mock-1"}}
		for i := 0; i < 20; i++ {
			particles = append(particles, domain.Particle{Kind: domain.ParticleText, Text: "x"})
		}
		particles = append(particles, domain.Particle{Kind: domain.ParticleDone})

		runWith := func(parallel int) (nonFinal int) {
			mock := &scriptedTransport{particles: particles}
			orch, _ := newTestOrchestrator(t, mock)
			_, err := orch.Raw(ctx, generate.RawRequest{
				Config:   domain.ModelConfig{ModelID: "mock-1", Vendor: "mock"},
				Parallel: parallel,
				OnProgress: func(_ *domain.Accumulator, done bool) {
					if !done {
						nonFinal++
					}
				},
			})
			require.NoError(t, err)
			return
		}

		require.Greater(t, runWith(0), runWith(9), "higher parallelism yields fewer updates")
	})
}
