package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts flow and condition from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if flow := GetFlow(ctx); flow != "" {
		e.Str("flow", flow)
	}

	if condition := GetCondition(ctx); condition != "" {
		e.Str("condition", condition)
	}
}
