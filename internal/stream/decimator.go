// Package stream reassembles ordered wire particles into content fragments
// and throttles UI-facing progress callbacks.
package stream

import (
	"math"

	"github.com/pyre-llm/pyre/internal/domain"
)

// Progress observes the shared accumulator after a particle has been applied.
// The accumulator reference is a volatile read valid only for the duration of
// the callback. done is true exactly once per call.
type Progress func(acc *domain.Accumulator, done bool)

// DefaultProgressScale is the base rate constant of the decimator divisor.
// Tunable through configuration; the divisor for a parallelism level grows
// with the square root of the level times this constant.
const DefaultProgressScale = 2.0

// Decimate wraps fn so that intermediate invocations may be skipped while the
// invocation marked done is always delivered. Level 0 disables throttling.
// Level >= 1 reduces the callback frequency by a divisor of
// round(sqrt(level) * scale), so higher parallelism hints yield sub-linearly
// fewer updates. Call order is preserved and a done call is never coalesced
// with a non-final one.
func Decimate(level int, scale float64, fn Progress) Progress {
	if fn == nil || level <= 0 {
		return fn
	}
	if scale <= 0 {
		scale = DefaultProgressScale
	}

	divisor := int(math.Round(math.Sqrt(float64(level)) * scale))
	if divisor < 1 {
		divisor = 1
	}

	var calls int
	return func(acc *domain.Accumulator, done bool) {
		if done {
			fn(acc, true)
			return
		}
		calls++
		if calls%divisor == 0 {
			fn(acc, false)
		}
	}
}
