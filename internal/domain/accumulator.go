package domain

// AccumulatorState is the per-call lifecycle of an accumulator. It moves from
// Streaming to exactly one terminal state and is never reused across calls.
type AccumulatorState int

const (
	StateStreaming AccumulatorState = iota
	StateAborted
	StateExcepted
	StateCompleted
)

// String returns the lifecycle label for logging.
func (s AccumulatorState) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateAborted:
		return "aborted"
	case StateExcepted:
		return "excepted"
	case StateCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// Accumulator is the single-owner mutable aggregate of one generation call.
// The reassembler mutates it in place; progress callbacks read the same
// reference, valid only for the duration of the callback. The fragment list
// is append/extend-only while streaming and sealed at finalize; failure paths
// only ever append.
//
// Methods are not safe for concurrent use; the owning reassembler serializes
// all access.
type Accumulator struct {
	Fragments  []Fragment
	Usage      *Usage
	Model      string
	StopReason StopReason

	state    AccumulatorState
	openText bool
}

// NewAccumulator returns a fresh accumulator in the Streaming state.
func NewAccumulator() *Accumulator {
	return &Accumulator{state: StateStreaming}
}

// State reports the current lifecycle state.
func (a *Accumulator) State() AccumulatorState { return a.state }

// Terminal reports whether the accumulator has left the Streaming state.
func (a *Accumulator) Terminal() bool { return a.state != StateStreaming }

// ExtendText appends a delta to the open text fragment, creating one if no
// text fragment is currently open.
func (a *Accumulator) ExtendText(delta string) {
	if a.Terminal() {
		return
	}
	if a.openText && len(a.Fragments) > 0 {
		last, ok := a.Fragments[len(a.Fragments)-1].(TextFragment)
		if ok {
			a.Fragments[len(a.Fragments)-1] = TextFragment{Text: last.Text + delta}
			return
		}
	}
	a.Fragments = append(a.Fragments, TextFragment{Text: delta})
	a.openText = true
}

// Append seals any open text fragment and appends a complete fragment.
func (a *Accumulator) Append(f Fragment) {
	if a.Terminal() {
		return
	}
	a.sealText()
	a.Fragments = append(a.Fragments, f)
}

// MergeUsage folds a metrics snapshot into the accumulator.
func (a *Accumulator) MergeUsage(u Usage) {
	if a.Usage == nil {
		a.Usage = &Usage{}
	}
	a.Usage.Merge(u)
}

// SetModel records the vendor-resolved model name.
func (a *Accumulator) SetModel(model string) {
	if model != "" {
		a.Model = model
	}
}

// SetStopReason records the latest stop-reason update from the wire.
func (a *Accumulator) SetStopReason(r StopReason) {
	if r != StopUnknown {
		a.StopReason = r
	}
}

// Abort marks the call as user-cancelled. Idempotent: the first call wins and
// returns true. Already accumulated fragments are preserved as-is; an empty
// accumulator stays empty apart from the stop-reason.
func (a *Accumulator) Abort() bool {
	if a.Terminal() {
		return false
	}
	a.sealText()
	a.StopReason = StopCancelled
	a.state = StateAborted
	return true
}

// Except appends an error fragment carrying message, preserving everything
// accumulated so far, and transitions to Excepted. Returns true on the first
// terminal transition.
func (a *Accumulator) Except(message string) bool {
	if a.Terminal() {
		return false
	}
	a.sealText()
	a.Fragments = append(a.Fragments, ErrorFragment{Message: message})
	a.state = StateExcepted
	return true
}

// Complete seals the open text fragment and transitions to Completed unless a
// terminal state was already reached. Returns true on the first transition.
func (a *Accumulator) Complete() bool {
	if a.Terminal() {
		return false
	}
	a.sealText()
	a.state = StateCompleted
	return true
}

// SealText closes the open text fragment so the next delta starts a new one.
func (a *Accumulator) SealText() { a.sealText() }

func (a *Accumulator) sealText() { a.openText = false }

// UsageSnapshot returns the accumulated usage, zero-valued when the wire never
// reported metrics.
func (a *Accumulator) UsageSnapshot() Usage {
	if a.Usage == nil {
		return Usage{}
	}
	return *a.Usage
}
