package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/stockly-app/sessionkit/pkg/authevents"
	"github.com/stockly-app/sessionkit/pkg/logger"
	"github.com/stockly-app/sessionkit/pkg/requestid"
)

// RequestIDHeader carries a per-request identifier for correlating client
// and server logs.
const RequestIDHeader = requestid.Header

// TokenStore is the part of the credential store the transport needs.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	ClearTokens(ctx context.Context) error
}

// Transport attaches the current access token to outgoing requests and turns
// 401 responses into a cleared token pair plus an unauthorized signal.
//
// The token is read when each request is sent, so a token stored or cleared
// between two requests is reflected in the second. The caller's request is
// never modified.
type Transport struct {
	base    http.RoundTripper
	tokens  TokenStore
	events  authevents.Publisher
	log     *slog.Logger
	metrics *Metrics
}

// NewTransport wraps base. A nil base uses http.DefaultTransport and nil
// events disables signalling.
func NewTransport(base http.RoundTripper, tokens TokenStore, events authevents.Publisher, opts ...Option) *Transport {
	o := newOptions(opts)
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:    base,
		tokens:  tokens,
		events:  events,
		log:     o.log,
		metrics: o.metrics,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	out := req.Clone(ctx)
	requestID := requestid.Resolve(ctx, out.Header.Get(RequestIDHeader))
	out.Header.Set(RequestIDHeader, requestID)

	if t.tokens != nil {
		token, err := t.tokens.AccessToken(ctx)
		if err != nil {
			// Sent without credentials; the server decides.
			t.log.WarnContext(ctx, "unable to read access token",
				logger.Error(err),
				logger.RequestID(requestID),
			)
		}
		if token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.metrics.observe(req.Method, 0, time.Since(start))
		return nil, err
	}
	t.metrics.observe(req.Method, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		t.unauthorized(ctx, req, requestID)
	}
	return resp, nil
}

// unauthorized clears tokens and then notifies listeners. Both steps finish
// before the 401 is handed back, and neither is tied to the request's
// cancellation.
func (t *Transport) unauthorized(ctx context.Context, req *http.Request, requestID string) {
	ctx = context.WithoutCancel(ctx)
	t.metrics.observeUnauthorized()

	t.log.InfoContext(ctx, "credentials rejected",
		logger.Event("unauthorized"),
		logger.Method(req.Method),
		logger.Path(req.URL.Path),
		logger.RequestID(requestID),
	)

	if t.tokens != nil {
		if err := t.tokens.ClearTokens(ctx); err != nil {
			t.log.ErrorContext(ctx, "failed to clear tokens after 401",
				logger.Error(err),
				logger.RequestID(requestID),
			)
		}
	}

	if t.events != nil {
		t.events.Publish(ctx, authevents.Signal{
			Method:    req.Method,
			Path:      req.URL.Path,
			RequestID: requestID,
		})
	}
}
