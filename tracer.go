package proxytrace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Tracer resolves proxy traces for requests using a trust predicate compiled
// once at construction.
//
// Tracer instances are safe for concurrent reuse.
type Tracer struct {
	config *config
}

// New creates a Tracer from one or more Option builders.
//
// Without trust options every hop is trusted. See TrustSpec.
func New(opts ...Option) (*Tracer, error) {
	cfg, err := configFromOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Tracer{config: cfg}, nil
}

// TrustFunc returns the compiled trust predicate used by t.
func (t *Tracer) TrustFunc() TrustFunc {
	return t.config.trustFunc
}

// Trace resolves the trace for a connection's remote address and an optional
// raw X-Forwarded-For header value.
func (t *Tracer) Trace(remoteAddr, xForwardedFor string) (Trace, error) {
	var values []string
	if xForwardedFor != "" {
		values = []string{xForwardedFor}
	}

	return t.trace(context.Background(), SourceValues, remoteAddr, values)
}

// TraceRequest resolves the trace for r from r.RemoteAddr and all of its
// X-Forwarded-For header lines.
func (t *Tracer) TraceRequest(r *http.Request) (Trace, error) {
	if r == nil {
		return Trace{}, &MalformedChainError{Source: SourceRequest, Reason: "nil request"}
	}

	return t.trace(r.Context(), SourceRequest, r.RemoteAddr, r.Header.Values(headerXForwardedFor))
}

// TraceFrom resolves the trace from framework-agnostic request input.
func (t *Tracer) TraceFrom(input RequestInput) (Trace, error) {
	ctx := requestInputContext(input)
	sourceName := requestInputSource(input)
	if err := ctx.Err(); err != nil {
		t.recordFailure(ctx, sourceName, input.RemoteAddr, err)
		return Trace{}, err
	}

	return t.trace(ctx, sourceName, input.RemoteAddr, forwardedForValues(input.Headers))
}

// TraceWithOptions is a one-shot convenience helper.
//
// It constructs a temporary tracer from opts and resolves the trace for a
// remote address and raw X-Forwarded-For value.
func TraceWithOptions(remoteAddr, xForwardedFor string, opts ...Option) (Trace, error) {
	tracer, err := New(opts...)
	if err != nil {
		return Trace{}, err
	}

	return tracer.Trace(remoteAddr, xForwardedFor)
}

// TraceRequestWithOptions is a one-shot convenience helper.
//
// It constructs a temporary tracer from opts and resolves the trace for r.
func TraceRequestWithOptions(r *http.Request, opts ...Option) (Trace, error) {
	tracer, err := New(opts...)
	if err != nil {
		return Trace{}, err
	}

	return tracer.TraceRequest(r)
}

func (t *Tracer) trace(ctx context.Context, sourceName, remoteAddr string, xffValues []string) (Trace, error) {
	chain, err := buildChain(sourceName, remoteAddr, xffValues, t.config.maxChainLength)
	if err != nil {
		t.recordFailure(ctx, sourceName, remoteAddr, err)
		return Trace{}, err
	}

	trace, err := Resolve(chain, t.config.trustFunc)
	if err != nil {
		t.recordFailure(ctx, sourceName, remoteAddr, err)
		return Trace{}, err
	}

	if discarded := len(chain) - trace.Hops(); discarded > 0 {
		t.config.metrics.RecordSecurityEvent(securityEventUntrustedHopsDiscarded)
		t.logSecurityWarning(ctx, sourceName, remoteAddr, securityEventUntrustedHopsDiscarded,
			"untrusted peer forwarded additional addresses",
			"peer", trace.Peer,
			"discarded", discarded,
		)
	}

	t.config.metrics.RecordTraceSuccess(sourceName)
	return trace, nil
}

func (t *Tracer) recordFailure(ctx context.Context, sourceName, remoteAddr string, err error) {
	if event, msg, ok := failureWarningDetails(err); ok {
		t.config.metrics.RecordSecurityEvent(event)

		attrs := []any{"error", err.Error()}

		var chainErr *ChainTooLongError
		var trustErr *TrustEvaluationError
		switch {
		case errors.As(err, &chainErr):
			attrs = append(attrs, "chain_length", chainErr.ChainLength, "max_length", chainErr.MaxLength)
		case errors.As(err, &trustErr):
			attrs = append(attrs, "address", trustErr.Address, "hop", trustErr.Hop)
		}

		t.logSecurityWarning(ctx, sourceName, remoteAddr, event, msg, attrs...)
	}

	t.config.metrics.RecordTraceFailure(sourceName)
}

func failureWarningDetails(err error) (event, msg string, ok bool) {
	switch {
	case errors.Is(err, ErrChainTooLong):
		return securityEventChainTooLong, "forwarded chain exceeds configured maximum length", true
	case errors.Is(err, ErrTrustEvaluation):
		return securityEventTrustEvaluationFailed, "trust predicate failed for hop", true
	case errors.Is(err, ErrMalformedChain):
		return securityEventMalformedChain, "malformed address chain", true
	default:
		return "", "", false
	}
}

func (t *Tracer) logSecurityWarning(ctx context.Context, sourceName, remoteAddr, event, msg string, attrs ...any) {
	baseAttrs := []any{
		"event", event,
		"source", sourceName,
		"remote_addr", remoteAddr,
	}

	baseAttrs = append(baseAttrs, attrs...)
	t.config.logger.WarnContext(ctx, msg, baseAttrs...)
}
