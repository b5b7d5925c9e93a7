package proxytrace

import (
	"context"
	"net/http"
)

const headerXForwardedFor = "X-Forwarded-For"

// HeaderValues provides access to request header values by name.
//
// Implementations should return one slice entry per received header line, in
// the order received. The tracer asks for "X-Forwarded-For" in canonical
// MIME format; lookups are expected to be case-insensitive.
//
// net/http's http.Header satisfies this interface directly.
type HeaderValues interface {
	Values(name string) []string
}

// HeaderValuesFunc adapts a function to the HeaderValues interface.
type HeaderValuesFunc func(name string) []string

// Values implements HeaderValues.
func (f HeaderValuesFunc) Values(name string) []string {
	if f == nil {
		return nil
	}

	return f(name)
}

// RequestInput provides framework-agnostic request data for tracing.
//
// Context defaults to context.Background() when nil. Source labels the
// trace in logs and metrics and defaults to SourceRequest.
type RequestInput struct {
	Context    context.Context
	RemoteAddr string
	Headers    HeaderValues
	Source     string
}

func requestInputContext(input RequestInput) context.Context {
	if input.Context == nil {
		return context.Background()
	}

	return input.Context
}

func requestInputSource(input RequestInput) string {
	if input.Source == "" {
		return SourceRequest
	}

	return input.Source
}

func forwardedForValues(headers HeaderValues) []string {
	switch h := headers.(type) {
	case nil:
		return nil
	case http.Header:
		return h.Values(headerXForwardedFor)
	case *http.Header:
		if h == nil {
			return nil
		}
		return h.Values(headerXForwardedFor)
	case HeaderValuesFunc:
		return h.Values(headerXForwardedFor)
	}

	if isNilInterface(headers) {
		return nil
	}

	return headers.Values(headerXForwardedFor)
}
