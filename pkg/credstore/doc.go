// Package credstore persists the access token, refresh token and signed-in
// user record between runs.
//
// A Store sits on a Backend. Three are provided:
//
//   - MemoryBackend keeps values for the life of the process.
//   - FileBackend writes one JSON document with atomic replace and 0600 mode.
//   - RedisBackend shares a session across processes through redis.
//
// Keys are namespaced, "@stockly/access_token" by default. With WithSealer
// every value is encrypted with AES-GCM before it reaches the backend.
//
//	store := credstore.New(credstore.NewFileBackend(cfg.StorePath),
//	    credstore.WithLogger(log),
//	)
//	if err := store.SaveSession(ctx, access, refresh, user); err != nil {
//	    return err
//	}
//
// Reading a user record that cannot be decoded returns nil and logs a
// warning; callers treat it as absent.
package credstore
