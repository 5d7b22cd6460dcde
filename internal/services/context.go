package services

import "context"

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	batchIDKey   contextKey = "batch_id"
	stepKey      contextKey = "step"
	pairKey      contextKey = "pair"
	requestIDKey contextKey = "request_id"
)

// WithTaskID annotates context with the batch task identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the task identifier if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(taskIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBatchID annotates context with the batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the zero-based chain step index.
func WithStep(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, stepKey, index)
}

// StepFromContext returns the chain step index if present.
func StepFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(stepKey).(int)
	return v, ok
}

// WithPair annotates context with the format pair being converted ("csv->json").
func WithPair(ctx context.Context, pair string) context.Context {
	if pair == "" {
		return ctx
	}
	return context.WithValue(ctx, pairKey, pair)
}

// PairFromContext returns the format pair if present.
func PairFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(pairKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
