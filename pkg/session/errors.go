package session

import "errors"

var (
	// ErrNoStore indicates New was called without a credential store.
	ErrNoStore = errors.New("session.no_store")

	// ErrNoClient indicates New was called without a login client.
	ErrNoClient = errors.New("session.no_client")
)
