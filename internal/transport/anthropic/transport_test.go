package anthropic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/transport/anthropic"
)

func TestNewTransport_Success(t *testing.T) {
	config := anthropic.Config{
		APIKey:  "test-api-key",
		BaseURL: "https://api.anthropic.com",
		Timeout: 60,
	}

	tr, err := anthropic.NewTransport(config)

	require.NoError(t, err)
	require.NotNil(t, tr)
	require.Equal(t, "anthropic", tr.Name())
}

func TestNewTransport_MissingAPIKey(t *testing.T) {
	tr, err := anthropic.NewTransport(anthropic.Config{})

	require.Error(t, err)
	require.Nil(t, tr)
	require.Contains(t, err.Error(), "Anthropic API key is required")
}

func TestTransport_Supports(t *testing.T) {
	tr, err := anthropic.NewTransport(anthropic.Config{APIKey: "test-key"})
	require.NoError(t, err)

	require.True(t, tr.Supports(context.Background(), "claude-sonnet-4-20250514"))
	require.True(t, tr.Supports(context.Background(), "claude-3-5-haiku-20241022"))
	require.False(t, tr.Supports(context.Background(), "gpt-4o"))
	require.False(t, tr.Supports(context.Background(), ""))
}

func TestTransport_NilRequest(t *testing.T) {
	tr, err := anthropic.NewTransport(anthropic.Config{APIKey: "test-key"})
	require.NoError(t, err)

	_, err = tr.Generate(context.Background(), nil)
	require.Error(t, err)
}
