package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify defaults
		require.False(t, cfg.Debug.Enabled)
		require.Equal(t, 8090, cfg.Debug.Port)
		require.Equal(t, 128, cfg.Debug.Capacity)
		require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
		require.Equal(t, 60, cfg.OpenAI.Timeout)
		require.Empty(t, cfg.OpenAI.APIKey)
		require.Equal(t, "https://api.anthropic.com", cfg.Anthropic.BaseURL)
		require.Empty(t, cfg.Anthropic.APIKey)
		require.False(t, cfg.Redis.Enabled)
		require.Equal(t, "localhost:6379", cfg.Redis.Addr)
		require.Equal(t, 3600, cfg.Redis.TTL)
		require.InDelta(t, 2.0, cfg.Pipeline.ProgressScale, 1e-9)
		require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		t.Setenv("DEBUG_SERVER_ENABLED", "true")
		t.Setenv("DEBUG_SERVER_PORT", "9001")
		t.Setenv("DEBUG_FRAME_CAPACITY", "16")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENAI_BASE_URL", "https://test.openai.com")
		t.Setenv("ANTHROPIC_API_KEY", "ak-test-key")
		t.Setenv("REDIS_ENABLED", "true")
		t.Setenv("REDIS_ADDR", "cache:6379")
		t.Setenv("REDIS_TTL", "120")
		t.Setenv("PIPELINE_PROGRESS_SCALE", "1.5")

		cfg := config.Load()

		require.NotNil(t, cfg)

		require.True(t, cfg.Debug.Enabled)
		require.Equal(t, 9001, cfg.Debug.Port)
		require.Equal(t, 16, cfg.Debug.Capacity)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "https://test.openai.com", cfg.OpenAI.BaseURL)
		require.Equal(t, "ak-test-key", cfg.Anthropic.APIKey)
		require.True(t, cfg.Redis.Enabled)
		require.Equal(t, "cache:6379", cfg.Redis.Addr)
		require.Equal(t, 120, cfg.Redis.TTL)
		require.InDelta(t, 1.5, cfg.Pipeline.ProgressScale, 1e-9)
	})
}

func TestParseDependenciesConfig(t *testing.T) {
	os.Clearenv()
	cfg := config.Load()

	dep := config.ParseDependenciesConfig(cfg)
	require.Same(t, &cfg.Debug, dep.Debug)
	require.Same(t, &cfg.CORS, dep.CORS)
	require.Same(t, &cfg.OpenAI, dep.OpenAI)
	require.Same(t, &cfg.Anthropic, dep.Anthropic)
	require.Same(t, &cfg.Redis, dep.Redis)
	require.Same(t, &cfg.Pipeline, dep.Pipeline)
}
