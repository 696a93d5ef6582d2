// Package requestid carries request correlation identifiers.
//
// Every request sent through apiclient gets an "X-Request-ID" header. The
// value comes from the request itself, then from the context, and is
// generated otherwise:
//
//	ctx = requestid.WithContext(ctx, "checkout-42")
//	err := client.Get(ctx, apiclient.EndpointInvoices, &out)
//
// Ids must match [a-zA-Z0-9_-]+ and be at most 128 bytes; anything else is
// replaced with a new UUID.
//
// Middleware does the same on the server side and is used by the fake
// backend in tests.
package requestid
