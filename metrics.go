package proxytrace

// Metrics records trace outcomes and security events emitted by Tracer.
//
// Implementations should be safe for concurrent use, as a single Tracer
// instance is typically shared across many goroutines.
type Metrics interface {
	// RecordTraceSuccess is called when a chain from source was resolved.
	RecordTraceSuccess(source string)
	// RecordTraceFailure is called when a chain from source could not be
	// built or resolved.
	RecordTraceFailure(source string)
	// RecordSecurityEvent is called when the tracer observes a
	// security-relevant condition.
	RecordSecurityEvent(event string)
}

// noopMetrics is the default Metrics implementation when metrics are not
// explicitly configured.
type noopMetrics struct{}

func (noopMetrics) RecordTraceSuccess(string) {}

func (noopMetrics) RecordTraceFailure(string) {}

func (noopMetrics) RecordSecurityEvent(string) {}
