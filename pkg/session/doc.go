// Package session owns the signed-in state of the Stockly client.
//
// A Manager starts in the hydrating phase. Hydrate reads the persisted user
// and moves to authenticated or anonymous. Login posts the credentials,
// stores the returned tokens together with the resolved user, and reports
// failures through a Reporter instead of returning errors. Logout clears
// memory first and storage second, and is safe to call any number of times.
//
//	bus := authevents.New()
//	store := credstore.New(credstore.NewFileBackend(cfg.StorePath))
//	client, err := apiclient.New(cfg.APIBase, store, bus)
//	if err != nil {
//	    return err
//	}
//
//	mgr, err := session.New(client, store, bus, session.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	mgr.Hydrate(ctx)
//	if !mgr.IsAuthenticated() {
//	    mgr.Login(ctx, username, password)
//	}
//
// # Forced logout
//
// New registers a handler on the unauthorized source. Any request through
// the apiclient transport that comes back 401 runs Logout before the caller
// receives the response, so code that checks IsAuthenticated after a failed
// request sees the anonymous state.
//
// # Observing changes
//
// Watch delivers State snapshots on a channel. Readers that fall behind get
// the latest state, not every intermediate one.
//
// # Identity
//
// The user name stored for a session is always the one passed to Login. The
// numeric id comes from the login response or, failing that, from the
// unverified access token payload. Neither is used for authorisation.
package session
