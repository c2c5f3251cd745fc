// Package antsdr provides the TCP input component that reads the AntSDR
// DroneID frame stream and publishes raw frames to NATS.
//
// The SDR serves a continuous byte stream of length-prefixed frames. A
// Framer segments the stream; the Input component owns the connection and
// publishes every complete frame, header included, to its NATS output
// subject for the downstream decoder. Malformed frames are discarded
// without interrupting the stream; end-of-stream triggers a fixed-backoff
// reconnect loop that never gives up.
package antsdr
