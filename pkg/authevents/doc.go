// Package authevents carries the "credentials rejected" signal from the HTTP
// transport to whoever owns the session.
//
// The transport publishes once per 401 response. The session manager
// registers a handler that performs logout:
//
//	bus := authevents.New(authevents.WithLogger(log))
//	unregister := bus.OnUnauthorized(func(ctx context.Context, sig authevents.Signal) {
//	    _ = manager.Logout(ctx)
//	})
//	defer unregister()
//
// Handlers are synchronous. When Publish returns every handler has finished,
// so a caller that sees the 401 also sees the signed-out state.
//
// Code that only needs to notice the event, such as a UI redraw loop, can use
// Subscribe and read from a channel instead.
package authevents
