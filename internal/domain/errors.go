package domain

import "errors"

// Failure classes shared across packages. Concrete errors wrap one of these
// so callers can branch with errors.Is.
var (
	// ErrBackendUnavailable covers transport errors, timeouts and non-2xx
	// responses from the chat backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackendDomain is a 2xx backend response carrying a non-zero code.
	ErrBackendDomain = errors.New("backend domain error")

	// ErrStoreUnavailable means the session store could not be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrMalformedEvent marks a webhook payload missing required fields.
	ErrMalformedEvent = errors.New("malformed event")
)
