package logging

import "context"

type contextKey string

const (
	flowKey      contextKey = "flow"
	conditionKey contextKey = "condition"
)

// WithFlow adds the running flow name to the context.
func WithFlow(ctx context.Context, flow string) context.Context {
	return context.WithValue(ctx, flowKey, flow)
}

// WithCondition adds a power condition key to the context.
func WithCondition(ctx context.Context, condition string) context.Context {
	return context.WithValue(ctx, conditionKey, condition)
}

// GetFlow retrieves the flow name from the context.
// Returns empty string if not present.
func GetFlow(ctx context.Context) string {
	if v, ok := ctx.Value(flowKey).(string); ok {
		return v
	}
	return ""
}

// GetCondition retrieves the condition key from the context.
// Returns empty string if not present.
func GetCondition(ctx context.Context) string {
	if v, ok := ctx.Value(conditionKey).(string); ok {
		return v
	}
	return ""
}
