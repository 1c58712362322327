// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values keeps the durations discoverable and prevents
// drift between transport boundaries.
package timeouts

import "time"

// ControlRequest caps how long a synchronous control call (start, pause,
// resume, status) may wait on the backing store before answering the
// caller with a failure envelope.
const ControlRequest = 2 * time.Second

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
