// Package errors provides standardized error handling for the DroneID gateway.
//
// The package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// The pipeline's error taxonomy maps onto these classes as follows:
//
//   - ErrFrameParse, ErrRecordDecode: Invalid. The offending frame or record
//     is dropped and the stream continues.
//   - ErrConnectionClosed, ErrConnectionLost, ErrConnectionTimeout: Transient.
//     They drive the input component's reconnect loop.
//   - ErrPublishFailed: Transient in class, but publishers deliver at most
//     once: a failed publish is logged and the record abandoned, never queued.
//   - ErrInvalidConfig, ErrMissingConfig: Fatal. The process refuses to start.
//
// No data-quality or transient-network error is ever fatal at runtime; the
// gateway is designed to run unattended.
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// Classification is preserved through error chains and integrates with
// errors.Is, errors.As, and error wrapping from the standard library.
package errors
