// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//   - Forever: Execute function until success or cancellation (unbounded retry)
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//   - Fixed(d): constant delay, no growth (supervisor reconnect loops)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Connect()
//	})
//
// Unbounded reconnect with a fixed backoff interval:
//
//	err := retry.Forever(ctx, retry.Fixed(5*time.Second), func() error {
//	    return input.dialAndServe(ctx)
//	})
//
// Mark an error as non-retryable to fail fast:
//
//	return retry.NonRetryable(errors.ErrInvalidConfig)
package retry
