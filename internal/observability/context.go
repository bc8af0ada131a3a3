package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	thesisIDKey  contextKey = "thesis_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithThesisID adds a thesis ID to the context.
func WithThesisID(ctx context.Context, thesisID string) context.Context {
	return context.WithValue(ctx, thesisIDKey, thesisID)
}

// ThesisIDFromContext retrieves the thesis ID from context.
// Returns empty string if not present.
func ThesisIDFromContext(ctx context.Context) string {
	if v := ctx.Value(thesisIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// RunContext contains the context data for a research run.
type RunContext struct {
	RequestID string
	ThesisID  string
}

// WithRunContext adds all run context to the context.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.ThesisID != "" {
		ctx = WithThesisID(ctx, rc.ThesisID)
	}
	return ctx
}

// RunContextFromContext extracts all run context from the context.
func RunContextFromContext(ctx context.Context) RunContext {
	return RunContext{
		RequestID: RequestIDFromContext(ctx),
		ThesisID:  ThesisIDFromContext(ctx),
	}
}
