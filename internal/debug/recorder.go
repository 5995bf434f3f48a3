// Package debug captures recent generation call traces and exposes them over
// a small introspection HTTP server.
package debug

import (
	"sync"

	"github.com/pyre-llm/pyre/internal/domain"
)

// Recorder is a fixed-capacity ring buffer of debug frames. It implements
// domain.DebugSink; the oldest frame is evicted when the buffer is full.
type Recorder struct {
	mu       sync.Mutex
	frames   []domain.DebugFrame
	next     int
	capacity int
}

// NewRecorder creates a recorder holding at most capacity frames.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 128
	}
	return &Recorder{
		frames:   make([]domain.DebugFrame, 0, capacity),
		capacity: capacity,
	}
}

// Record stores a completed call frame.
func (r *Recorder) Record(frame domain.DebugFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) < r.capacity {
		r.frames = append(r.frames, frame)
		return
	}
	r.frames[r.next] = frame
	r.next = (r.next + 1) % r.capacity
}

// Frames returns a snapshot of the recorded frames, oldest first.
func (r *Recorder) Frames() []domain.DebugFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.DebugFrame, 0, len(r.frames))
	if len(r.frames) == r.capacity {
		out = append(out, r.frames[r.next:]...)
		out = append(out, r.frames[:r.next]...)
		return out
	}
	return append(out, r.frames...)
}
