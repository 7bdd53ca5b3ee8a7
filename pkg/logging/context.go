package logging

import "context"

type contextKey int

const (
	rolloutIDKey contextKey = iota
	batchIDKey
)

// WithRolloutID attaches a rollout id to the context so log entries emitted
// from inside the rollout carry it.
func WithRolloutID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, rolloutIDKey, id)
}

// GetRolloutID returns the rollout id attached to the context, if any.
func GetRolloutID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(rolloutIDKey).(string)
	return id, ok
}

// WithBatchID attaches a parallel-batch id to the context.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// GetBatchID returns the batch id attached to the context, if any.
func GetBatchID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(batchIDKey).(string)
	return id, ok
}
