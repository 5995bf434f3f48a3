package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pyre-llm/pyre/internal/domain"
	"github.com/pyre-llm/pyre/internal/observability"
	"github.com/pyre-llm/pyre/internal/retry"
	"github.com/pyre-llm/pyre/internal/stream"
)

const defaultCacheTTL = 1 * time.Hour

// Orchestrator drives generation calls through the transport, reassembler and
// decimator, resolving model configuration and accounting cost.
type Orchestrator struct {
	transports domain.TransportRegistry
	models     domain.ModelRegistry
	cost       domain.CostCalculator
	metrics    *domain.MetricsAggregator
	scheduler  *retry.Scheduler

	cache         domain.ResponseCache
	debug         domain.DebugSink
	hook          domain.RateLimitHook
	fallbacks     map[string]any
	userParams    map[string]map[string]any
	progressScale float64
	cacheTTL      time.Duration
}

// Option mutates orchestrator construction.
type Option func(*Orchestrator)

// WithCache enables the response cache for non-streaming calls.
func WithCache(cache domain.ResponseCache) Option {
	return func(o *Orchestrator) { o.cache = cache }
}

// WithCacheTTL overrides the response cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.cacheTTL = ttl }
}

// WithDebugSink enables per-call debug frame capture.
func WithDebugSink(sink domain.DebugSink) Option {
	return func(o *Orchestrator) { o.debug = sink }
}

// WithRateLimitHook installs the vendor rate-limit hook, awaited once per
// call before the transport is invoked.
func WithRateLimitHook(hook domain.RateLimitHook) Option {
	return func(o *Orchestrator) { o.hook = hook }
}

// WithFallbacks sets the implicit runtime fallback parameter layer.
func WithFallbacks(fallbacks map[string]any) Option {
	return func(o *Orchestrator) { o.fallbacks = fallbacks }
}

// WithUserOverrides sets the user per-model override layer.
func WithUserOverrides(overrides map[string]map[string]any) Option {
	return func(o *Orchestrator) { o.userParams = overrides }
}

// WithProgressScale tunes the decimator frequency divisor constant.
func WithProgressScale(scale float64) Option {
	return func(o *Orchestrator) { o.progressScale = scale }
}

// WithScheduler overrides the retry scheduler.
func WithScheduler(s *retry.Scheduler) Option {
	return func(o *Orchestrator) { o.scheduler = s }
}

// NewOrchestrator creates an orchestrator (DI constructor).
func NewOrchestrator(
	transports domain.TransportRegistry,
	models domain.ModelRegistry,
	cost domain.CostCalculator,
	metrics *domain.MetricsAggregator,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		transports:    transports,
		models:        models,
		cost:          cost,
		metrics:       metrics,
		scheduler:     retry.NewScheduler(),
		progressScale: stream.DefaultProgressScale,
		cacheTTL:      defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RawRequest is the Tier-0 input: an already resolved model configuration.
type RawRequest struct {
	Config     domain.ModelConfig
	Payload    domain.Payload
	Call       domain.CallContext
	Stream     bool
	Parallel   int // parallelism hint, drives decimation level
	OnProgress stream.Progress
	OnRetry    retry.NotifyFunc
}

// Raw performs one generation at the accumulator level. It never rejects for
// content-domain failures: a transport error or user cancellation becomes a
// clean abort or an appended error fragment; only unexpected internal faults
// return a non-nil error. The returned accumulator is always usable.
func (o *Orchestrator) Raw(ctx context.Context, req RawRequest) (*domain.Accumulator, error) {
	logger := observability.FromContext(ctx)

	t, err := o.transports.Get(ctx, req.Config.Vendor)
	if err != nil {
		return nil, fmt.Errorf("transport resolution failed: %w", err)
	}

	acc := domain.NewAccumulator()
	decimated := stream.Decimate(req.Parallel, o.progressScale, req.OnProgress)
	r := stream.NewReassembler(acc, decimated)
	defer r.Close()

	var trace *domain.DebugTrace
	if o.debug != nil {
		trace = domain.NewDebugTrace(req.Call)
	}

	genReq := &domain.GenRequest{
		Config:  req.Config,
		Payload: req.Payload,
		Call:    req.Call,
		Stream:  req.Stream,
		Trace:   trace,
	}

	var particles <-chan domain.Particle
	err = o.scheduler.Do(ctx, func(ctx context.Context) error {
		var openErr error
		particles, openErr = t.Generate(ctx, genReq)
		return openErr
	}, func(a retry.Attempt) {
		logger.Warn("retrying generation",
			observability.Int("attempt", a.Number),
			observability.Int("max_attempts", a.MaxAttempts),
			observability.Duration("delay", a.Delay),
			observability.String("cause", a.Cause),
		)
		if req.OnRetry != nil {
			req.OnRetry(a)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("generation cancelled before transport opened")
			r.Abort()
		} else {
			logger.Error("transport failed after retries", observability.Error(err))
			r.Except(fmt.Sprintf("generation request failed: %v", err))
		}
		o.recordTrace(trace, false)
		return acc, nil
	}

	for p := range particles {
		trace.Observe(p)
		r.Enqueue(p)
	}
	r.Wait()

	if ctx.Err() != nil {
		r.Abort()
	} else {
		r.Finalize()
	}

	o.recordTrace(trace, acc.State() == domain.StateCompleted)
	return acc, nil
}

// MessageRequest is the Tier-1 input: a model reference plus per-call
// overrides, resolved through the parameter overlay.
type MessageRequest struct {
	Model      string
	Payload    domain.Payload
	Call       domain.CallContext
	Overrides  map[string]any // per-call layer; must not contain "model"
	Stream     bool
	Parallel   int
	OnProgress stream.Progress
	OnRetry    retry.NotifyFunc
}

// Message performs one generation at the message level: overlay resolution,
// model quirk hotfixes, rate-limit hook, pending notification, Tier-0 drive,
// cost computation and metrics aggregation. Exactly one terminal ("done")
// notification is emitted per call.
func (o *Orchestrator) Message(ctx context.Context, req MessageRequest) (*domain.Message, error) {
	if req.Call.Reference == "" {
		req.Call.Reference = observability.GenerateCallReference()
	}
	ctx = observability.WithModel(ctx, req.Model)
	ctx = observability.WithPurpose(ctx, req.Call.Purpose)
	ctx = observability.WithCallReference(ctx, req.Call.Reference)
	logger := observability.FromContext(ctx)

	spec, err := o.models.Spec(ctx, req.Model)
	if err != nil {
		return nil, fmt.Errorf("model resolution failed: %w", err)
	}
	ctx = observability.WithVendor(ctx, spec.Vendor)

	params, err := ResolveOverlay(o.fallbacks, spec.Initial, o.userParams[req.Model], req.Overrides)
	if err != nil {
		return nil, err
	}

	cfg := buildModelConfig(spec, params, req.Stream)
	applyModelQuirks(&cfg)

	var cacheKey string
	if o.cache != nil && !cfg.Stream {
		cacheKey = requestKey(req.Model, req.Payload)
		cached, cacheErr := o.cache.Get(ctx, cacheKey)
		if cacheErr != nil && !errors.Is(cacheErr, domain.ErrCacheMiss) {
			logger.Warn("cache get failed, continuing without cache", observability.Error(cacheErr))
		}
		if cached != nil {
			logger.Info("cache hit, returning cached response",
				observability.String("cached_model", cached.Record.ModelID))
			o.notifyCached(cached, req.OnProgress)
			return cached, nil
		}
	}

	if o.hook != nil {
		if hookErr := o.hook(ctx, req.Model); hookErr != nil {
			return nil, fmt.Errorf("rate limit hook rejected call: %w", hookErr)
		}
	}

	// Pending notification before the network call so observers can render
	// immediately. Bypasses the decimator on purpose.
	if req.OnProgress != nil {
		req.OnProgress(domain.NewAccumulator(), false)
	}

	acc, err := o.Raw(ctx, RawRequest{
		Config:     cfg,
		Payload:    req.Payload,
		Call:       req.Call,
		Stream:     cfg.Stream,
		Parallel:   req.Parallel,
		OnProgress: req.OnProgress,
		OnRetry:    req.OnRetry,
	})
	if err != nil {
		return nil, err
	}

	usage := acc.UsageSnapshot()
	cost, costErr := o.cost.Calculate(ctx, req.Model, usage)
	if costErr != nil {
		logger.Warn("cost calculation failed", observability.Error(costErr))
	}
	o.metrics.Record(req.Model, req.Call.Purpose, usage, cost)

	resolvedModel := acc.Model
	if resolvedModel == "" {
		resolvedModel = req.Model
	}

	msg := &domain.Message{
		Fragments: acc.Fragments,
		Record: domain.Record{
			ModelID:    resolvedModel,
			Vendor:     spec.Vendor,
			Usage:      usage,
			Cost:       cost,
			StopReason: acc.StopReason,
			FinishTime: time.Now(),
		},
	}

	if cacheKey != "" && acc.State() == domain.StateCompleted {
		if setErr := o.cache.Set(ctx, cacheKey, msg, o.cacheTTL); setErr != nil {
			logger.Warn("failed to store in cache", observability.Error(setErr))
		}
	}

	logger.Info("generation finished",
		observability.String("state", acc.State().String()),
		observability.Int("fragments", len(msg.Fragments)),
		observability.Int("prompt_tokens", usage.PromptTokens),
		observability.Int("completion_tokens", usage.CompletionTokens),
		observability.Float64("cost", cost.Total),
	)

	return msg, nil
}

// TextRequest is the Tier-2 input: plain text in, plain text out.
type TextRequest struct {
	Model     string
	System    string
	Prompt    string
	History   []domain.ChatMessage
	Call      domain.CallContext
	Overrides map[string]any
	Stream    bool
	Parallel  int
	OnText    func(text string, done bool)
	OnRetry   retry.NotifyFunc
}

// Text performs one generation restricted to text. A tool invocation fragment
// in the result is a contract violation and raises ErrToolCallInText. User
// cancellation is re-raised as context.Canceled; in-band error content and an
// entirely empty result are raised as errors.
func (o *Orchestrator) Text(ctx context.Context, req TextRequest) (string, error) {
	// Copy the history so appending the prompt never aliases the caller's
	// backing array.
	messages := make([]domain.ChatMessage, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	if req.Prompt != "" {
		messages = append(messages, domain.ChatMessage{Role: "user", Content: req.Prompt})
	}
	payload := domain.Payload{
		System:   req.System,
		Messages: messages,
	}

	var onProgress stream.Progress
	if req.OnText != nil {
		onProgress = func(acc *domain.Accumulator, done bool) {
			req.OnText(flattenText(acc.Fragments), done)
		}
	}

	msg, err := o.Message(ctx, MessageRequest{
		Model:      req.Model,
		Payload:    payload,
		Call:       req.Call,
		Overrides:  req.Overrides,
		Stream:     req.Stream,
		Parallel:   req.Parallel,
		OnProgress: onProgress,
		OnRetry:    req.OnRetry,
	})
	if err != nil {
		return "", err
	}

	var text, errText string
	for _, f := range msg.Fragments {
		switch v := f.(type) {
		case domain.TextFragment:
			text += v.Text
		case domain.ErrorFragment:
			errText += v.Message
		case domain.ToolCallFragment:
			return "", fmt.Errorf("%w: %s", domain.ErrToolCallInText, v.Name)
		case domain.ToolResultFragment, domain.ImageFragment,
			domain.ReferenceFragment, domain.VoidFragment:
			// not representable as plain text; skipped
		default:
			return "", fmt.Errorf("%w: %T", domain.ErrUnknownFragment, f)
		}
	}

	if msg.Record.StopReason == domain.StopCancelled {
		return "", context.Canceled
	}
	if errText != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrUpstream, errText)
	}
	if text == "" {
		return "", domain.ErrEmptyResult
	}
	return text, nil
}

// flattenText concatenates text and error fragment content for streaming
// callbacks; other variants do not render as plain text.
func flattenText(fragments []domain.Fragment) string {
	var out string
	for _, f := range fragments {
		switch v := f.(type) {
		case domain.TextFragment:
			out += v.Text
		case domain.ErrorFragment:
			out += v.Message
		}
	}
	return out
}

// notifyCached replays the terminal notification for a cache hit so the
// one-done-per-call contract holds without a transport round trip.
func (o *Orchestrator) notifyCached(msg *domain.Message, progress stream.Progress) {
	if progress == nil {
		return
	}
	acc := domain.NewAccumulator()
	for _, f := range msg.Fragments {
		acc.Append(f)
	}
	acc.SetModel(msg.Record.ModelID)
	acc.MergeUsage(msg.Record.Usage)
	acc.SetStopReason(msg.Record.StopReason)
	acc.Complete()
	progress(acc, true)
}

func (o *Orchestrator) recordTrace(trace *domain.DebugTrace, completed bool) {
	if o.debug == nil || trace == nil {
		return
	}
	o.debug.Record(trace.Finish(completed))
}

// requestKey hashes the cache-relevant parts of a request.
func requestKey(model string, payload domain.Payload) string {
	h := sha256.New()
	h.Write([]byte(model))
	if data, err := json.Marshal(payload); err == nil {
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
