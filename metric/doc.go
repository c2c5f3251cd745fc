// Package metric provides Prometheus-based observability for the DroneID
// gateway.
//
// The MetricsRegistry wraps a dedicated Prometheus registry and ships with a
// set of core platform metrics under the "droneid" namespace: per-component
// lifecycle status, message received/processed/published counters,
// processing duration histograms, error counters, health gauges, and NATS
// connection state. Components add their own collectors through the
// MetricsRegistrar interface; duplicate registrations are rejected.
//
// Server exposes the registry over HTTP at /metrics (OpenMetrics enabled)
// together with a /health endpoint.
package metric
