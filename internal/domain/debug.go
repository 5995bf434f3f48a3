package domain

import "time"

// TimedParticle is one entry of the ordered particle log captured for a call.
// The particle itself is summarized so frames stay serializable and small.
type TimedParticle struct {
	At     time.Time    `json:"at"`
	Kind   ParticleKind `json:"kind"`
	Detail string       `json:"detail,omitempty"`
}

// DebugFrame is the per-call introspection record delivered to a DebugSink.
type DebugFrame struct {
	Reference string            `json:"reference"`
	Purpose   string            `json:"purpose"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      string            `json:"body,omitempty"`
	Particles []TimedParticle   `json:"particles"`
	Completed bool              `json:"completed"`
}

// DebugTrace is the mutable capture buffer threaded through a single call.
// The transport fills in dispatch details; the orchestrator appends the
// particle log and hands the finished frame to the sink. Single-owner per
// call, like the accumulator.
type DebugTrace struct {
	frame DebugFrame
}

// NewDebugTrace starts a capture for the given call context.
func NewDebugTrace(call CallContext) *DebugTrace {
	return &DebugTrace{frame: DebugFrame{
		Reference: call.Reference,
		Purpose:   call.Purpose,
	}}
}

// SetDispatch records where and what the transport sent. Credentials must be
// redacted by the caller.
func (t *DebugTrace) SetDispatch(url string, headers map[string]string, body string) {
	if t == nil {
		return
	}
	t.frame.URL = url
	t.frame.Headers = headers
	t.frame.Body = body
}

// Observe appends one particle to the timestamped log.
func (t *DebugTrace) Observe(p Particle) {
	if t == nil {
		return
	}
	detail := ""
	switch p.Kind {
	case ParticleText:
		detail = p.Text
	case ParticleFragment:
		detail, _ = FragmentKind(p.Fragment)
	case ParticleModel:
		detail = p.Model
	case ParticleStopReason:
		detail = string(p.StopReason)
	case ParticleError:
		detail = p.Message
	case ParticleUsage, ParticleBoundary, ParticleDone:
		// nothing beyond the kind
	}
	t.frame.Particles = append(t.frame.Particles, TimedParticle{
		At:     time.Now(),
		Kind:   p.Kind,
		Detail: detail,
	})
}

// Finish marks the frame complete and returns it for recording.
func (t *DebugTrace) Finish(completed bool) DebugFrame {
	t.frame.Completed = completed
	return t.frame
}
