package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

const traceIDBytes = 16 // OpenTelemetry trace ID size in bytes

const (
	// TraceIDKey holds the trace ID.
	TraceIDKey contextKey = "trace_id"

	// CallReferenceKey holds the per-call correlation reference.
	CallReferenceKey contextKey = "call_ref"

	// PurposeKey holds the call purpose label.
	PurposeKey contextKey = "purpose"

	// VendorKey holds the transport vendor name for this call.
	VendorKey contextKey = "vendor"

	// ModelKey holds the model name for this call.
	ModelKey contextKey = "model"
)

// WithTraceID injects trace ID into context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithCallReference injects the call correlation reference into context.
func WithCallReference(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, CallReferenceKey, ref)
}

// WithPurpose injects the call purpose label into context.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, PurposeKey, purpose)
}

// WithVendor injects the vendor name into context.
func WithVendor(ctx context.Context, vendor string) context.Context {
	return context.WithValue(ctx, VendorKey, vendor)
}

// WithModel injects the model name into context.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ModelKey, model)
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetCallReference extracts the call correlation reference from context.
func GetCallReference(ctx context.Context) string {
	if ref, ok := ctx.Value(CallReferenceKey).(string); ok {
		return ref
	}
	return ""
}

// GetPurpose extracts the call purpose label from context.
func GetPurpose(ctx context.Context) string {
	if purpose, ok := ctx.Value(PurposeKey).(string); ok {
		return purpose
	}
	return ""
}

// GetVendor extracts the vendor name from context.
func GetVendor(ctx context.Context) string {
	if vendor, ok := ctx.Value(VendorKey).(string); ok {
		return vendor
	}
	return ""
}

// GetModel extracts the model name from context.
func GetModel(ctx context.Context) string {
	if model, ok := ctx.Value(ModelKey).(string); ok {
		return model
	}
	return ""
}

// GenerateTraceID generates an OpenTelemetry-compatible trace ID (32 hex chars).
func GenerateTraceID() string {
	bytes := make([]byte, traceIDBytes)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(bytes)
}

// GenerateCallReference generates a unique per-call correlation id (UUID).
func GenerateCallReference() string {
	return uuid.New().String()
}
