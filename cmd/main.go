package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	rediscache "github.com/pyre-llm/pyre/internal/cache/redis"
	"github.com/pyre-llm/pyre/internal/config"
	"github.com/pyre-llm/pyre/internal/debug"
	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/generate"
	"github.com/pyre-llm/pyre/internal/observability"
	"github.com/pyre-llm/pyre/internal/transport/anthropic"
	"github.com/pyre-llm/pyre/internal/transport/echo"
	"github.com/pyre-llm/pyre/internal/transport/openai"
	"github.com/pyre-llm/pyre/internal/transport/registry"
)

// ErrTransportNotConfigured indicates that a transport is not configured and should be skipped.
var ErrTransportNotConfigured = errors.New("transport not configured")

func main() {
	container := buildContainer()

	err := container.Invoke(func(cfg *config.Config, orch *generate.Orchestrator, recorder *debug.Recorder) error {
		if cfg.Debug.Enabled {
			srv := debug.NewServer(&cfg.Debug, &cfg.CORS, recorder)
			go func() {
				if err := srv.Start(); err != nil {
					log.Printf("debug server stopped: %v", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			}()
		}

		return runDemo(orch)
	})
	if err != nil {
		log.Fatalf("Failed to run application: %v", err)
	}
}

// runDemo streams one generation through the local echo transport so the
// pipeline can be exercised without any API keys.
func runDemo(orch *generate.Orchestrator) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	text, err := orch.Text(ctx, generate.TextRequest{
		Model:  "echo-1",
		Prompt: "The pipeline is alive.",
		Call:   domain.CallContext{Purpose: "demo"},
		Stream: true,
		OnText: func(partial string, done bool) {
			if !done {
				fmt.Printf("\rstreaming: %s", partial)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("demo generation failed: %w", err)
	}

	fmt.Printf("\nfinal: %s\n", text)
	return nil
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Registries and accounting
	if err := container.Provide(func() domain.TransportRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide transport registry: %v", err)
	}
	if err := container.Provide(provideModelRegistry); err != nil {
		log.Fatalf("Failed to provide model registry: %v", err)
	}
	if err := container.Provide(func(models *domain.InMemoryModelRegistry) domain.CostCalculator {
		return domain.NewStandardCostCalculator(models)
	}); err != nil {
		log.Fatalf("Failed to provide cost calculator: %v", err)
	}
	if err := container.Provide(domain.NewMetricsAggregator); err != nil {
		log.Fatalf("Failed to provide metrics aggregator: %v", err)
	}

	// Debug capture
	if err := container.Provide(func(cfg *config.DebugConfig) *debug.Recorder {
		return debug.NewRecorder(cfg.Capacity)
	}); err != nil {
		log.Fatalf("Failed to provide debug recorder: %v", err)
	}

	// Transports
	if err := container.Provide(func(cfg *openai.Config) (*openai.Transport, error) {
		if cfg.APIKey == "" {
			return nil, ErrTransportNotConfigured
		}
		return openai.NewTransport(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI transport: %v", err)
	}
	if err := container.Provide(func(cfg *anthropic.Config) (*anthropic.Transport, error) {
		if cfg.APIKey == "" {
			return nil, ErrTransportNotConfigured
		}
		return anthropic.NewTransport(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide Anthropic transport: %v", err)
	}

	// Register transports with the registry (invoked for side effects). The
	// echo transport is always available; vendor transports only when their
	// API key is set.
	if err := container.Invoke(func(reg domain.TransportRegistry) error {
		return reg.Register(context.Background(), echo.NewTransport())
	}); err != nil {
		log.Fatalf("Failed to register echo transport: %v", err)
	}
	registerTransport(container, func(reg domain.TransportRegistry, t *openai.Transport) error {
		return reg.Register(context.Background(), t)
	})
	registerTransport(container, func(reg domain.TransportRegistry, t *anthropic.Transport) error {
		return reg.Register(context.Background(), t)
	})

	// Orchestrator
	if err := container.Provide(provideOrchestrator); err != nil {
		log.Fatalf("Failed to provide orchestrator: %v", err)
	}

	return container
}

// registerTransport invokes fn and tolerates unconfigured transports.
func registerTransport(container *dig.Container, fn any) {
	if err := container.Invoke(fn); err != nil && !errors.Is(err, ErrTransportNotConfigured) {
		log.Fatalf("Failed to register transport: %v", err)
	}
}

// provideModelRegistry seeds the parameter registry with the known models.
func provideModelRegistry() (*domain.InMemoryModelRegistry, domain.ModelRegistry, error) {
	models := domain.NewInMemoryModelRegistry()

	seed := []domain.ModelSpec{
		{
			ID:     "echo-1",
			Vendor: "echo",
		},
		{
			ID:      "gpt-4o",
			Vendor:  "openai",
			Initial: map[string]any{"temperature": 0.7, "max_tokens": int64(4096)},
			Pricing: domain.PricingConfig{InputCostPer1K: 0.0025, OutputCostPer1K: 0.01},
		},
		{
			ID:      "gpt-4o-mini",
			Vendor:  "openai",
			Initial: map[string]any{"temperature": 0.7, "max_tokens": int64(4096)},
			Pricing: domain.PricingConfig{InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006},
		},
		{
			ID:      "o1",
			Vendor:  "openai",
			Initial: map[string]any{"max_tokens": int64(8192)},
			Pricing: domain.PricingConfig{InputCostPer1K: 0.015, OutputCostPer1K: 0.06},
		},
		{
			ID:      "claude-sonnet-4-20250514",
			Vendor:  "anthropic",
			Initial: map[string]any{"temperature": 1.0, "max_tokens": int64(8192)},
			Pricing: domain.PricingConfig{InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
		},
	}

	ctx := context.Background()
	for _, spec := range seed {
		if err := models.Register(ctx, spec); err != nil {
			return nil, nil, fmt.Errorf("failed to seed model %s: %w", spec.ID, err)
		}
	}

	return models, models, nil
}

// provideOrchestrator assembles the orchestrator with the optional response
// cache when Redis is enabled.
func provideOrchestrator(
	transports domain.TransportRegistry,
	models domain.ModelRegistry,
	cost domain.CostCalculator,
	metrics *domain.MetricsAggregator,
	recorder *debug.Recorder,
	redisCfg *config.RedisConfig,
	debugCfg *config.DebugConfig,
	pipelineCfg *config.PipelineConfig,
) *generate.Orchestrator {
	opts := []generate.Option{
		generate.WithProgressScale(pipelineCfg.ProgressScale),
	}

	if redisCfg.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		opts = append(opts,
			generate.WithCache(rediscache.NewResponseCache(client)),
			generate.WithCacheTTL(time.Duration(redisCfg.TTL)*time.Second),
		)
	}
	if debugCfg.Enabled {
		opts = append(opts, generate.WithDebugSink(recorder))
	}

	return generate.NewOrchestrator(transports, models, cost, metrics, opts...)
}
