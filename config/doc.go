// Package config loads and validates the gateway's application
// configuration.
//
// Configuration is a single JSON or YAML file (chosen by extension) merged
// over built-in defaults, with a small set of DRONEID_* environment
// overrides applied last (platform identity and NATS connection settings).
// File access is guarded: paths are checked for traversal, size is capped,
// and JSON nesting depth is bounded before parsing.
//
// The top-level Config carries platform identity (org and sensor ID), the
// NATS connection, the metrics server, and the component instance map. Each
// component entry names its factory, whether it is enabled, and an opaque
// raw config blob that the component's own factory parses and validates.
package config
