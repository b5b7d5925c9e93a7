// Package prometheus provides a Prometheus adapter for
// github.com/abczzz13/proxytrace.
//
// The package exposes proxytrace options that install a Prometheus-backed
// Metrics implementation on a tracer, using either the default registerer
// or a caller-provided registerer.
package prometheus
