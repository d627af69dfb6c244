package context

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	resourceKey  ctxKey = "resource_external_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithResource tags the context with the resource being projected.
func WithResource(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, resourceKey, externalID)
}

func ResourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(resourceKey).(string)
	return value
}
