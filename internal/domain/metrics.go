package domain

import "sync"

// ModelTotals is the additive per-model slice of the process metrics.
type ModelTotals struct {
	Calls            int64   `json:"calls"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// MetricsAggregator accumulates cost and token totals across calls. It is the
// only cross-call shared resource of the pipeline: counters are append-only
// and safe for concurrent increment. Create one at process start and inject
// it; collaborators read snapshots.
type MetricsAggregator struct {
	mu       sync.Mutex
	byModel  map[string]*ModelTotals
	bySource map[string]*ModelTotals
}

// NewMetricsAggregator creates an empty aggregator.
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{
		byModel:  make(map[string]*ModelTotals),
		bySource: make(map[string]*ModelTotals),
	}
}

// Record adds one completed call to the totals. source is the call-context
// purpose label used for attribution.
func (m *MetricsAggregator) Record(model, source string, usage Usage, cost CostBreakdown) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if model != "" {
		add(m.byModel, model, usage, cost)
	}
	if source != "" {
		add(m.bySource, source, usage, cost)
	}
}

func add(table map[string]*ModelTotals, key string, usage Usage, cost CostBreakdown) {
	totals, ok := table[key]
	if !ok {
		totals = &ModelTotals{}
		table[key] = totals
	}
	totals.Calls++
	totals.PromptTokens += int64(usage.PromptTokens)
	totals.CompletionTokens += int64(usage.CompletionTokens)
	totals.Cost += cost.Total
}

// SnapshotByModel returns a copy of the per-model totals.
func (m *MetricsAggregator) SnapshotByModel() map[string]ModelTotals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.byModel)
}

// SnapshotBySource returns a copy of the per-source totals.
func (m *MetricsAggregator) SnapshotBySource() map[string]ModelTotals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.bySource)
}

func snapshot(table map[string]*ModelTotals) map[string]ModelTotals {
	out := make(map[string]ModelTotals, len(table))
	for k, v := range table {
		out[k] = *v
	}
	return out
}
