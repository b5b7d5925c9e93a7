package proxytrace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type loggerTestContextKey string

type capturedLogEntry struct {
	ctx   context.Context
	msg   string
	attrs map[string]any
}

type capturedLogger struct {
	mu      sync.Mutex
	entries []capturedLogEntry
}

func (l *capturedLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, capturedLogEntry{
		ctx:   ctx,
		msg:   msg,
		attrs: attrsToMap(args),
	})
}

func (l *capturedLogger) snapshot() []capturedLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]capturedLogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func attrsToMap(args []any) map[string]any {
	attrs := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs[key] = args[i+1]
	}
	return attrs
}

func assertAttr(t *testing.T, attrs map[string]any, key string, want any) {
	t.Helper()

	got, ok := attrs[key]
	if !ok {
		t.Fatalf("missing %q attr", key)
	}

	if got != want {
		t.Fatalf("%s attr = %v, want %v", key, got, want)
	}
}

func assertCommonSecurityWarningAttrs(t *testing.T, attrs map[string]any, event, source, remoteAddr string) {
	t.Helper()

	assertAttr(t, attrs, "event", event)
	assertAttr(t, attrs, "source", source)
	assertAttr(t, attrs, "remote_addr", remoteAddr)
}

func singleEntry(t *testing.T, logger *capturedLogger) capturedLogEntry {
	t.Helper()

	entries := logger.snapshot()
	if len(entries) != 1 {
		t.Fatalf("logged entries = %d, want 1", len(entries))
	}
	return entries[0]
}

func TestLogging_ChainTooLong_EmitsWarning(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger), MaxChainLength(2))

	req := newTestRequest("1.1.1.1:8080", "/test/chain-too-long", "8.8.8.8, 9.9.9.9, 4.4.4.4")

	_, err := tracer.TraceRequest(req)
	if !errors.Is(err, ErrChainTooLong) {
		t.Fatalf("TraceRequest() error = %v, want ErrChainTooLong", err)
	}

	entry := singleEntry(t, logger)
	assertCommonSecurityWarningAttrs(t, entry.attrs, securityEventChainTooLong, SourceRequest, "1.1.1.1:8080")
	assertAttr(t, entry.attrs, "chain_length", 3)
	assertAttr(t, entry.attrs, "max_length", 2)
}

func TestLogging_TrustEvaluationFailed_EmitsWarning(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger), TrustAddrs("10.0.0.0/8"))

	_, err := tracer.Trace("10.0.0.1:1234", "1.1.1.1, bogus")
	if !errors.Is(err, ErrTrustEvaluation) {
		t.Fatalf("Trace() error = %v, want ErrTrustEvaluation", err)
	}

	entry := singleEntry(t, logger)
	assertCommonSecurityWarningAttrs(t, entry.attrs, securityEventTrustEvaluationFailed, SourceValues, "10.0.0.1:1234")
	assertAttr(t, entry.attrs, "address", "bogus")
	assertAttr(t, entry.attrs, "hop", 1)
}

func TestLogging_MalformedChain_EmitsWarning(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger))

	_, err := tracer.Trace("", "1.1.1.1")
	if !errors.Is(err, ErrMalformedChain) {
		t.Fatalf("Trace() error = %v, want ErrMalformedChain", err)
	}

	entry := singleEntry(t, logger)
	assertCommonSecurityWarningAttrs(t, entry.attrs, securityEventMalformedChain, SourceValues, "")
}

func TestLogging_UntrustedHopsDiscarded_EmitsWarning(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger), TrustAddrs("10.0.0.0/8"))

	trace, err := tracer.Trace("10.0.0.1:1234", "6.6.6.6, 7.7.7.7")
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	if trace.Peer != "7.7.7.7" {
		t.Fatalf("Peer = %q, want 7.7.7.7", trace.Peer)
	}

	entry := singleEntry(t, logger)
	assertCommonSecurityWarningAttrs(t, entry.attrs, securityEventUntrustedHopsDiscarded, SourceValues, "10.0.0.1:1234")
	assertAttr(t, entry.attrs, "peer", "7.7.7.7")
	assertAttr(t, entry.attrs, "discarded", 1)
}

func TestLogging_CleanTrace_NoWarnings(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger), TrustAddrs("10.0.0.0/8"))

	if _, err := tracer.Trace("10.0.0.1:1234", "7.7.7.7, 10.0.0.2"); err != nil {
		t.Fatalf("Trace() error = %v", err)
	}

	if entries := logger.snapshot(); len(entries) != 0 {
		t.Fatalf("logged entries = %d, want 0", len(entries))
	}
}

func TestLogging_WarnsWithRequestContext(t *testing.T) {
	logger := &capturedLogger{}
	tracer := mustNewTracer(t, WithLogger(logger), MaxChainLength(1))

	ctx := context.WithValue(context.Background(), loggerTestContextKey("trace_id"), "trace-123")
	req := newTestRequest("1.1.1.1:8080", "/", "8.8.8.8").WithContext(ctx)

	if _, err := tracer.TraceRequest(req); err == nil {
		t.Fatal("TraceRequest() error = nil, want error")
	}

	entry := singleEntry(t, logger)
	if got := entry.ctx.Value(loggerTestContextKey("trace_id")); got != "trace-123" {
		t.Fatalf("trace context value = %v, want %q", got, "trace-123")
	}
}

func TestLogging_SlogLogger(t *testing.T) {
	var buf bytes.Buffer
	tracer := mustNewTracer(t,
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))),
		TrustAddrs("loopback"),
	)

	if _, err := tracer.Trace("127.0.0.1:80", "6.6.6.6, 7.7.7.7"); err != nil {
		t.Fatalf("Trace() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"level=WARN", "event=untrusted_hops_discarded", "peer=7.7.7.7", "discarded=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestWithLogger_Nil(t *testing.T) {
	if _, err := New(WithLogger(nil)); err == nil {
		t.Fatal("New(WithLogger(nil)) error = nil, want error")
	}

	var typedNil *slog.Logger
	if _, err := New(WithLogger(typedNil)); err == nil {
		t.Fatal("New(WithLogger(typed nil)) error = nil, want error")
	}
}
