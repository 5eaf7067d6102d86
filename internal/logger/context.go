package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

type requestScope struct {
	logger    *zap.Logger
	requestID string
}

// WithRequestID derives a request logger from base tagged with requestID and
// stores it in ctx. The derived logger is returned for the caller's own lines.
func WithRequestID(ctx context.Context, base *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	if base == nil {
		base = zap.NewNop()
	}
	l := base
	if requestID != "" {
		l = base.With(zap.String("request_id", requestID))
	}
	return context.WithValue(ctx, ctxKey{}, requestScope{logger: l, requestID: requestID}), l
}

// FromContext returns the request logger stored in ctx, or fallback outside a request.
// A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if sc, ok := ctx.Value(ctxKey{}).(requestScope); ok {
		return sc.logger
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// RequestID returns the id recorded by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	sc, _ := ctx.Value(ctxKey{}).(requestScope)
	return sc.requestID
}
