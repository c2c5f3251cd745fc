// Package natsclient wraps the NATS connection used as the gateway's
// internal message bus.
//
// The Client owns connection lifecycle (Connect, Close with drain), tracks
// subscriptions so they are released on shutdown, and exposes both async
// subscriptions with per-message contexts and synchronous subscriptions for
// callers that poll with NextMsg (the auxiliary position feed).
//
// Reconnection is delegated to the NATS client library: the Client
// configures infinite reconnects by default and surfaces state changes
// through the disconnect/reconnect/health-change callbacks.
package natsclient
