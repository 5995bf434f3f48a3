package stream

import (
	"fmt"
	"sync"

	"github.com/pyre-llm/pyre/internal/domain"
)

// queueCapacity buffers the producer/consumer rate mismatch between the
// transport and particle application.
const queueCapacity = 64

// Reassembler consumes an ordered stream of wire particles, mutates a single
// shared accumulator and emits decimated progress callbacks. It owns the
// per-call state machine: Streaming until exactly one of Abort, Except or
// Finalize wins.
//
// Particles are applied strictly sequentially by one consumer goroutine; the
// progress callback runs to completion before the next particle is applied,
// which is the backpressure mechanism against a fast producer. The callback
// must not call back into the reassembler.
type Reassembler struct {
	mu       sync.Mutex
	acc      *domain.Accumulator
	progress Progress

	queue   chan domain.Particle
	pending sync.WaitGroup
	closed  bool

	notifiedDone  bool
	sawToolResult bool
}

// NewReassembler starts the consumer for acc. progress may be nil; pass the
// already decimated callback.
func NewReassembler(acc *domain.Accumulator, progress Progress) *Reassembler {
	r := &Reassembler{
		acc:      acc,
		progress: progress,
		queue:    make(chan domain.Particle, queueCapacity),
	}

	go func() {
		for p := range r.queue {
			r.apply(p)
			r.pending.Done()
		}
	}()

	return r
}

// Enqueue appends one particle for application. Safe to call from the
// transport goroutine; ignored after Close.
func (r *Reassembler) Enqueue(p domain.Particle) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.pending.Add(1)
	r.mu.Unlock()

	r.queue <- p
}

// Wait blocks until every previously enqueued particle has finished being
// applied, not merely until the queue is momentarily empty. Safe to call
// immediately after the last Enqueue.
func (r *Reassembler) Wait() {
	r.pending.Wait()
}

// Abort marks the call as user-cancelled. Idempotent. Existing fragments are
// preserved; an empty accumulator stays empty apart from the stop-reason.
func (r *Reassembler) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acc.Abort() {
		r.notifyDoneLocked()
	}
}

// Except appends an error fragment carrying message, preserving accumulated
// content, and transitions to Excepted.
func (r *Reassembler) Except(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acc.Except(message) {
		r.notifyDoneLocked()
	}
}

// Finalize seals any open text fragment and transitions to Completed unless
// Abort or Except already won.
func (r *Reassembler) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeLocked()
}

// Close stops accepting particles, drains the queue and releases the
// consumer. Call after Wait and the terminal transition.
func (r *Reassembler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.pending.Wait()
	close(r.queue)
}

// apply folds one particle into the accumulator and emits a progress
// notification. Runs on the consumer goroutine only.
func (r *Reassembler) apply(p domain.Particle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.acc.Terminal() {
		// Late particles after a terminal transition are dropped; content is
		// never rewritten once the state machine has resolved.
		return
	}

	if p.Kind != domain.ParticleText {
		// Any non-text particle closes the open text fragment; later text
		// deltas start a new one.
		r.acc.SealText()
	}

	switch p.Kind {
	case domain.ParticleText:
		r.acc.ExtendText(p.Text)
	case domain.ParticleBoundary:
		// The seal above is the whole effect.
	case domain.ParticleFragment:
		r.applyFragmentLocked(p.Fragment)
	case domain.ParticleUsage:
		if p.Usage != nil {
			r.acc.MergeUsage(*p.Usage)
		}
	case domain.ParticleModel:
		r.acc.SetModel(p.Model)
	case domain.ParticleStopReason:
		r.acc.SetStopReason(p.StopReason)
	case domain.ParticleError:
		r.acc.Append(domain.ErrorFragment{Message: p.Message})
	case domain.ParticleDone:
		r.finalizeLocked()
		return
	default:
		r.acc.Append(domain.ErrorFragment{
			Message: fmt.Sprintf("%v: %q", domain.ErrUnknownParticle, p.Kind),
		})
	}

	r.notifyLocked()
}

// applyFragmentLocked appends a complete fragment, handling every variant of
// the closed set explicitly.
func (r *Reassembler) applyFragmentLocked(f domain.Fragment) {
	switch v := f.(type) {
	case domain.ToolCallFragment:
		if r.sawToolResult {
			// A tool invocation arriving after a tool response is out of
			// order on the wire; surface it instead of accepting silently.
			r.acc.Append(domain.ErrorFragment{
				Message: fmt.Sprintf("out-of-order tool invocation %q after tool response", v.Name),
			})
			return
		}
		r.acc.Append(v)
	case domain.ToolResultFragment:
		r.sawToolResult = true
		r.acc.Append(v)
	case domain.TextFragment, domain.ImageFragment, domain.ErrorFragment,
		domain.ReferenceFragment, domain.VoidFragment:
		r.acc.Append(f)
	default:
		r.acc.Append(domain.ErrorFragment{
			Message: fmt.Sprintf("%v: %T", domain.ErrUnknownFragment, f),
		})
	}
}

// notifyLocked emits a non-final progress notification, suppressed until at
// least one fragment exists so the first notification carries real content.
func (r *Reassembler) notifyLocked() {
	if r.progress == nil || len(r.acc.Fragments) == 0 {
		return
	}
	r.progress(r.acc, false)
}

func (r *Reassembler) finalizeLocked() {
	if r.acc.Complete() {
		r.notifyDoneLocked()
	}
}

// notifyDoneLocked delivers the terminal notification exactly once per call.
func (r *Reassembler) notifyDoneLocked() {
	if r.notifiedDone {
		return
	}
	r.notifiedDone = true
	if r.progress != nil {
		r.progress(r.acc, true)
	}
}
