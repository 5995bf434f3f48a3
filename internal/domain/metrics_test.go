package domain_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyre-llm/pyre/internal/domain"
)

func TestMetricsAggregator_Record(t *testing.T) {
	m := domain.NewMetricsAggregator()

	m.Record("gpt-4o", "summarize",
		domain.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
		domain.CostBreakdown{Total: 0.01})
	m.Record("gpt-4o", "classify",
		domain.Usage{PromptTokens: 30, CompletionTokens: 10, TotalTokens: 40},
		domain.CostBreakdown{Total: 0.002})
	m.Record("claude-sonnet-4-20250514", "summarize",
		domain.Usage{PromptTokens: 200, CompletionTokens: 80, TotalTokens: 280},
		domain.CostBreakdown{Total: 0.03})

	byModel := m.SnapshotByModel()
	require.Len(t, byModel, 2)
	require.Equal(t, int64(2), byModel["gpt-4o"].Calls)
	require.Equal(t, int64(130), byModel["gpt-4o"].PromptTokens)
	require.Equal(t, int64(60), byModel["gpt-4o"].CompletionTokens)
	require.InDelta(t, 0.012, byModel["gpt-4o"].Cost, 1e-9)

	bySource := m.SnapshotBySource()
	require.Len(t, bySource, 2)
	require.Equal(t, int64(2), bySource["summarize"].Calls)
	require.InDelta(t, 0.04, bySource["summarize"].Cost, 1e-9)
	require.Equal(t, int64(1), bySource["classify"].Calls)
}

func TestMetricsAggregator_EmptyLabelsSkipped(t *testing.T) {
	m := domain.NewMetricsAggregator()
	m.Record("", "", domain.Usage{TotalTokens: 10}, domain.CostBreakdown{})

	require.Empty(t, m.SnapshotByModel())
	require.Empty(t, m.SnapshotBySource())
}

func TestMetricsAggregator_SnapshotIsACopy(t *testing.T) {
	m := domain.NewMetricsAggregator()
	m.Record("m", "s", domain.Usage{PromptTokens: 1}, domain.CostBreakdown{})

	snap := m.SnapshotByModel()
	entry := snap["m"]
	entry.Calls = 99
	snap["m"] = entry

	require.Equal(t, int64(1), m.SnapshotByModel()["m"].Calls)
}

func TestMetricsAggregator_ConcurrentRecord(t *testing.T) {
	m := domain.NewMetricsAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Record("m", "s", domain.Usage{PromptTokens: 1}, domain.CostBreakdown{Total: 0.001})
			}
		}()
	}
	wg.Wait()

	totals := m.SnapshotByModel()["m"]
	require.Equal(t, int64(800), totals.Calls)
	require.Equal(t, int64(800), totals.PromptTokens)
}
