// Package component provides the core component infrastructure for the
// DroneID gateway, enabling component discovery, registration, lifecycle
// management, and instance creation.
//
// # Overview
//
// The component package defines the abstractions shared by all gateway
// components. Three component types exist: inputs (data sources, the AntSDR
// TCP frame stream), processors (data transformers, the DroneID decode and
// validation pipeline), and outputs (data sinks, the CoT UDP sender).
// Components are self-describing units that can be discovered at runtime,
// configured through schemas, and managed through their lifecycle.
//
// The Registry serves as the central component management system, handling
// both factory registration and instance management with thread-safe
// operations.
//
// # Component Registration Pattern
//
// Registration is EXPLICIT rather than init() self-registration. This keeps
// registries isolated in tests, makes the dependency graph visible, and
// avoids global state mutation during package initialization.
//
// Registration flow:
//
//  1. Each component package exports a Register(*Registry) error function
//  2. componentregistry.RegisterAll() orchestrates all registrations
//  3. main.go explicitly calls RegisterAll() with a created Registry
//  4. Components are now available for instantiation
//
// Example component registration:
//
//	// In input/antsdr/antsdr.go
//	func Register(registry *component.Registry) error {
//		return registry.RegisterWithConfig(component.RegistrationConfig{
//			Name:        "antsdr",
//			Factory:     NewInput,
//			Schema:      inputSchema,
//			Type:        "input",
//			Protocol:    "tcp",
//			Domain:      "droneid",
//			Description: "TCP input for AntSDR DroneID frame streams",
//			Version:     "1.0.0",
//		})
//	}
//
// # Lifecycle
//
// Components implementing LifecycleComponent follow a strict state machine:
// created -> initialized -> started -> stopped. Initialize performs setup
// without I/O, Start begins processing with a caller-owned context, and Stop
// shuts down gracefully within a timeout.
//
// # Ports and Resources
//
// Components declare their I/O surface as Ports. NATS ports carry subjects
// on the internal bus and are shareable; network ports (TCP/UDP host:port
// bindings) are exclusive, and the Registry rejects two instances claiming
// the same network resource.
package component
