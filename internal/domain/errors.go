package domain

import "errors"

var (
	// ErrUnknownFragment marks a fragment variant outside the closed set.
	ErrUnknownFragment = errors.New("unknown fragment variant")

	// ErrUnknownParticle marks a particle kind outside the closed set.
	ErrUnknownParticle = errors.New("unknown particle kind")

	// ErrCacheMiss indicates no cached entry was found.
	ErrCacheMiss = errors.New("cache miss")

	// ErrToolCallInText is raised when a tool invocation fragment reaches the
	// text-only facade, which promises no tool use.
	ErrToolCallInText = errors.New("tool call fragment in text-only result")

	// ErrEmptyResult indicates a completed call produced no text at all.
	ErrEmptyResult = errors.New("generation produced no text")

	// ErrUpstream carries concatenated in-band error content surfaced through
	// the text-only facade.
	ErrUpstream = errors.New("upstream error content")

	// ErrModelOverride rejects a per-call parameter override that attempts to
	// redefine the model reference.
	ErrModelOverride = errors.New("per-call override must not redefine model")
)
