package core

import "context"

type contextKey string

const ctxKeyJobID contextKey = "validation_job_id"

// ContextWithJobID tags ctx with the validation job being processed.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxKeyJobID, jobID)
}

// JobIDFromContext returns the job id set by ContextWithJobID, or "".
func JobIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyJobID).(string); ok {
		return v
	}
	return ""
}
