package transport_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/transport"
)

func TestStatusError(t *testing.T) {
	require.Equal(t, "http status 503", (&transport.StatusError{StatusCode: 503}).Error())
	require.Equal(t, "http status 429: slow down",
		(&transport.StatusError{StatusCode: 429, Message: "slow down"}).Error())
}

func TestConnError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &transport.ConnError{Cause: cause}

	require.Contains(t, err.Error(), "connection refused")
	require.ErrorIs(t, err, cause)
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"conn error", &transport.ConnError{Cause: errors.New("x")}, true},
		{"wrapped conn error", fmt.Errorf("open: %w", &transport.ConnError{Cause: errors.New("x")}), true},
		{"net error", &net.DNSError{Err: "no such host"}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"status error", &transport.StatusError{StatusCode: 502}, false},
		{"plain error", errors.New("x"), false},
		{"context canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, transport.IsConnectionError(tt.err))
		})
	}
}
