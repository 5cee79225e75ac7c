package gateway

import "errors"

// Error kinds a gateway call can fail with. Callers branch with errors.Is.
var (
	// ErrRequestFailed covers transport errors, timeouts and non-2xx
	// responses.
	ErrRequestFailed = errors.New("gateway request failed")

	// ErrBadPayload covers a 2xx response whose body cannot be decoded.
	ErrBadPayload = errors.New("gateway returned malformed payload")
)
