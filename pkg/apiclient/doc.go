// Package apiclient is the authenticated request pipeline for the Stockly
// API.
//
// Transport is an http.RoundTripper that reads the current access token
// before each request and sends it as "Authorization: Bearer <token>" on a
// copy of the request. When the server answers 401 it clears the stored
// tokens, publishes an authevents.Signal, and only then returns the response.
// A handler that logs out on that signal has therefore finished before the
// caller sees the error.
//
// Client layers JSON encoding and error decoding on top:
//
//	client, err := apiclient.New(cfg.APIBase, store, bus,
//	    apiclient.WithLogger(log),
//	    apiclient.WithTimeout(cfg.RequestTimeout),
//	)
//	if err != nil {
//	    return err
//	}
//
//	products, err := apiclient.GetList[Product](ctx, client, apiclient.EndpointProducts)
//
// Non-2xx responses come back as *Error. ErrorStatus and ErrorMessage extract
// the status and the server's "detail" or "error" text for display.
package apiclient
