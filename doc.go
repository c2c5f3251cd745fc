// Package droneidgateway is the module root for the AntSDR DJI DroneID
// gateway: a component-based pipeline that reads DJI DroneID telemetry
// frames from an AntSDR receiver over TCP, decodes and validates them,
// and republishes the results as JSON message arrays on NATS and as
// Cursor-on-Target XML events over UDP for TAK consumers.
//
// # Architecture
//
// The gateway is three components joined by NATS subjects:
//
//	AntSDR (TCP) → droneid.frames.raw → DroneID processor → droneid.messages (public JSON)
//	                                                      → droneid.display  → CoT output (UDP/TAK)
//
// A secondary best-effort feed on droneid.aux.gps carries the host
// sensor's own GPS fix, used to substitute the drone position when the
// decoded one is unusable.
//
// Each component implements the Discoverable and LifecycleComponent
// contracts in the component package and is wired through the registry
// in componentregistry. The cmd/antsdr-dji-droneid binary loads the
// configuration, connects NATS, and runs the configured components.
package droneidgateway
