package ecowitt

import "errors"

// Failure categories surfaced to callers. Use errors.Is to classify.
var (
	// ErrAuthentication means the gateway rejected the configured
	// credentials. Not retriable without reconfiguration.
	ErrAuthentication = errors.New("gateway authentication failed")

	// ErrConnection covers network failures, timeouts and malformed
	// responses. Retriable.
	ErrConnection = errors.New("gateway connection failed")
)
