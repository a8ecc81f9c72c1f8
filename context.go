package serverAuth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader is read for an inbound request id before one is generated.
const RequestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

// WithRequestID attaches a request id to ctx. Hooks and action handlers see the id
// the dispatcher assigned to the request they run for.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request id attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func requestID(r *http.Request) string {
	if id := RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= 128 {
		return id
	}
	return uuid.NewString()
}
