package retry

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"time"
)

// Attempt describes an upcoming retry, delivered to the notification callback
// before the backoff wait starts.
type Attempt struct {
	Number      int // 1-based number of the attempt about to run
	MaxAttempts int // attempt budget of the active profile
	Delay       time.Duration
	Cause       string // HTTP status or connection-category label
}

// NotifyFunc receives retry attempt metadata. It must not block for long; the
// backoff wait starts after it returns.
type NotifyFunc func(Attempt)

// Operation is one idempotent attempt of the work being retried.
type Operation func(ctx context.Context) error

// Scheduler drives repeated attempts of an operation using the profile chosen
// by the classifier. Given a deterministic jitter source it is referentially
// transparent apart from the notification callback.
type Scheduler struct {
	classify func(error) *Profile
	jitter   func() float64 // uniform in [-1, 1)
}

// Option mutates scheduler construction.
type Option func(*Scheduler)

// WithClassifier overrides the error classifier.
func WithClassifier(fn func(error) *Profile) Option {
	return func(s *Scheduler) { s.classify = fn }
}

// WithJitterSource overrides the jitter source; fn must return values in
// [-1, 1). Used by tests for determinism.
func WithJitterSource(fn func() float64) Option {
	return func(s *Scheduler) { s.jitter = fn }
}

// NewScheduler creates a scheduler with the package classifier and a
// crypto-seeded PCG jitter source.
func NewScheduler(opts ...Option) *Scheduler {
	rng := rand.New(rand.NewPCG(seed64(), seed64()))
	s := &Scheduler{
		classify: Classify,
		jitter:   func() float64 { return rng.Float64()*2 - 1 },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func seed64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint64(b[:])
	}
	return uint64(time.Now().UnixNano())
}

// Do runs op until it succeeds, the error classifies as non-retryable, the
// active profile's attempt budget is exhausted, or ctx is cancelled. A
// cancellation during the backoff wait surfaces the error that triggered the
// retry, never a synthetic abort error, and issues no further attempt.
func (s *Scheduler) Do(ctx context.Context, op Operation, notify NotifyFunc) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return err
		}

		profile := s.classify(err)
		if profile == nil {
			return err
		}
		if attempt >= profile.MaxAttempts {
			return err
		}

		delay := s.delay(profile, attempt)
		if notify != nil {
			notify(Attempt{
				Number:      attempt + 1,
				MaxAttempts: profile.MaxAttempts,
				Delay:       delay,
				Cause:       CauseLabel(err),
			})
		}

		if !sleep(ctx, delay) {
			return err
		}
	}
}

// delay computes the backoff before attempt+1: exponential growth capped at
// the profile maximum, then symmetric jitter, floored at one millisecond.
func (s *Scheduler) delay(profile *Profile, attempt int) time.Duration {
	d := float64(profile.BaseDelay) * math.Pow(2, float64(attempt-1))
	if ceiling := float64(profile.MaxDelay); d > ceiling {
		d = ceiling
	}

	jittered := math.Round(d + s.jitter()*d*profile.Jitter)
	if jittered < float64(time.Millisecond) {
		jittered = float64(time.Millisecond)
	}
	return time.Duration(jittered)
}

// sleep waits d in an abortable manner; false means ctx fired first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
