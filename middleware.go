package proxytrace

import (
	"context"
	"net/http"
)

// traceContextKey is used as a key for storing the trace in a context.
type traceContextKey struct{}

// NewContext returns a copy of ctx carrying trace.
func NewContext(ctx context.Context, trace Trace) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// FromContext returns the trace stored in ctx by NewContext or Middleware.
func FromContext(ctx context.Context) (Trace, bool) {
	trace, ok := ctx.Value(traceContextKey{}).(Trace)
	return trace, ok
}

// Middleware resolves the trace for each request and stores it in the
// request context for next. Requests whose chain cannot be resolved are
// answered with 400 Bad Request and never reach next.
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace, err := t.TraceRequest(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), trace)))
	})
}
