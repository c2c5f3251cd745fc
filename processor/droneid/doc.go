// Package droneid implements the telemetry pipeline processor: it decodes
// raw AntSDR frames into typed records, applies the validation and
// fallback policy, and publishes the results.
//
// The pipeline is strictly sequential. One worker consumes the raw frame
// subject; for each frame it decodes the fixed-layout telemetry payload,
// drains a bounded batch of host-sensor GPS messages into the auxiliary
// position cache, derives the display record (substituting the auxiliary
// fix when the drone's own position is unusable), renders the ordered JSON
// message array on the public subject and a display envelope on the
// internal subject for the CoT output. Malformed frames and undecodable
// records are dropped without stopping the stream; publish failures are
// logged and never retried.
package droneid
