// Package identity defines the client-side user record and a best-effort
// decoder that recovers it from an access token when the login response does
// not include a user object.
//
// The decoder never verifies signatures; treat its output as a label for the
// UI, not as proof of identity.
package identity
