package credstore

import "errors"

var (
	// ErrBackendUnavailable wraps failures of the underlying storage.
	ErrBackendUnavailable = errors.New("credstore.backend_unavailable")

	// ErrCorruptValue indicates a stored value could not be decoded.
	ErrCorruptValue = errors.New("credstore.corrupt_value")
)
