package debug_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/debug"
	"github.com/pyre-llm/pyre/internal/domain"
)

func frame(i int) domain.DebugFrame {
	return domain.DebugFrame{Reference: fmt.Sprintf("call-%d", i)}
}

func TestRecorder(t *testing.T) {
	t.Run("records in order below capacity", func(t *testing.T) {
		r := debug.NewRecorder(4)
		for i := 0; i < 3; i++ {
			r.Record(frame(i))
		}

		frames := r.Frames()
		require.Len(t, frames, 3)
		require.Equal(t, "call-0", frames[0].Reference)
		require.Equal(t, "call-2", frames[2].Reference)
	})

	t.Run("evicts the oldest frame at capacity", func(t *testing.T) {
		r := debug.NewRecorder(3)
		for i := 0; i < 5; i++ {
			r.Record(frame(i))
		}

		frames := r.Frames()
		require.Len(t, frames, 3)
		require.Equal(t, "call-2", frames[0].Reference)
		require.Equal(t, "call-4", frames[2].Reference)
	})

	t.Run("snapshot is independent of later records", func(t *testing.T) {
		r := debug.NewRecorder(2)
		r.Record(frame(0))
		frames := r.Frames()
		r.Record(frame(1))

		require.Len(t, frames, 1)
		require.Len(t, r.Frames(), 2)
	})

	t.Run("non-positive capacity falls back to a default", func(t *testing.T) {
		r := debug.NewRecorder(0)
		r.Record(frame(0))
		require.Len(t, r.Frames(), 1)
	})
}
