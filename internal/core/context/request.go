package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

// RequestInfo describes the inbound HTTP request. Audit entries copy it verbatim.
type RequestInfo struct {
	Method    string
	Path      string
	ClientIP  string
	UserAgent string
}

type (
	traceContextKey   struct{}
	requestContextKey struct{}
)

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext creates a new TraceContext with generated IDs.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String()[:16],
		RequestID: uuid.New().String(),
	}
}

// WithRequestInfo adds RequestInfo to context.
func WithRequestInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, requestContextKey{}, info)
}

// GetRequestInfo returns RequestInfo from context.
// Background jobs (seed, sync) have none and get an empty value.
func GetRequestInfo(ctx context.Context) RequestInfo {
	if v, ok := ctx.Value(requestContextKey{}).(*RequestInfo); ok && v != nil {
		return *v
	}
	return RequestInfo{}
}
