package authevents

import "errors"

// ErrHandlerPanic wraps values recovered from a panicking handler.
var ErrHandlerPanic = errors.New("authevents.handler_panic")
