package prometheus

import (
	"errors"
	"fmt"

	"github.com/abczzz13/proxytrace"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	traceTotalName     = "proxy_trace_total"
	securityEventsName = "proxy_trace_security_events_total"
)

// PrometheusMetrics is a Prometheus-backed implementation of
// proxytrace.Metrics.
type PrometheusMetrics struct {
	traceTotal     *prom.CounterVec
	securityEvents *prom.CounterVec
}

// WithMetrics returns a proxytrace option that installs Prometheus-backed
// metrics using prom.DefaultRegisterer.
func WithMetrics() proxytrace.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns a proxytrace option that installs Prometheus-backed
// metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) proxytrace.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

// withMetricsFactory defers collector registration until the tracer's
// configuration has been validated.
func withMetricsFactory(factory func() (*PrometheusMetrics, error)) proxytrace.Option {
	return proxytrace.WithMetricsFactory(func() (proxytrace.Metrics, error) {
		metrics, err := factory()
		if err != nil {
			return nil, err
		}
		return metrics, nil
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors on
// the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	traceTotalCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: traceTotalName,
			Help: "Total number of proxy trace resolutions by source (values, request, stream) and result (success, failure).",
		},
		[]string{"source", "result"},
	)
	securityEventsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: securityEventsName,
			Help: "Security-related events during proxy trace resolution, labeled by event.",
		},
		[]string{"event"},
	)

	traceTotal, err := registerCounterVec(registerer, traceTotalCollector, traceTotalName)
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCounterVec(registerer, securityEventsCollector, securityEventsName)
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		traceTotal:     traceTotal,
		securityEvents: securityEvents,
	}, nil
}

func registerCounterVec(registerer prom.Registerer, collector *prom.CounterVec, metricName string) (*prom.CounterVec, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prom.CounterVec)
			if ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		return nil, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordTraceSuccess increments proxy_trace_total with result="success" for
// the provided source.
func (m *PrometheusMetrics) RecordTraceSuccess(source string) {
	m.traceTotal.WithLabelValues(source, "success").Inc()
}

// RecordTraceFailure increments proxy_trace_total with result="failure" for
// the provided source.
func (m *PrometheusMetrics) RecordTraceFailure(source string) {
	m.traceTotal.WithLabelValues(source, "failure").Inc()
}

// RecordSecurityEvent increments proxy_trace_security_events_total for the
// provided event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
