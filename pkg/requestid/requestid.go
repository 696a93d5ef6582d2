package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
	idPattern   = "^[a-zA-Z0-9_-]+$"
)

var validIDRegex = regexp.MustCompile(idPattern)

// New returns a fresh UUIDv4 string.
func New() string {
	return uuid.NewString()
}

// Valid reports whether id is safe to put on the wire and into logs.
func Valid(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}

// Resolve picks the id for an outgoing request: the header value when
// valid, then the id stored in ctx when valid, then a new one.
func Resolve(ctx context.Context, header string) string {
	if Valid(header) {
		return header
	}
	if id := FromContext(ctx); Valid(id) {
		return id
	}
	return New()
}

// Middleware echoes the caller's id, or a new one, in the response header
// and stores it in the request context. Used by test servers to mirror the
// Stockly backend.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !Valid(id) {
			id = New()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}
