package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockly-app/sessionkit/pkg/apiclient"
	"github.com/stockly-app/sessionkit/pkg/requestid"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respond(status int) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{},
			Body:       http.NoBody,
			Request:    r,
		}, nil
	}
}

func TestTransport_AttachesBearerToClone(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return respond(http.StatusOK)(r)
	})
	tr := apiclient.NewTransport(base, &tokenStore{token: "abc"}, nil)

	req := httptest.NewRequest(http.MethodGet, "http://api.test/api/v1/products/", nil)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, seen)
	assert.Equal(t, "Bearer abc", seen.Header.Get("Authorization"))
	assert.NotEmpty(t, seen.Header.Get(apiclient.RequestIDHeader))
	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be modified")
	assert.Empty(t, req.Header.Get(apiclient.RequestIDHeader))
}

func TestTransport_NoTokenNoHeader(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return respond(http.StatusOK)(r)
	})
	tr := apiclient.NewTransport(base, &tokenStore{}, nil)

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, seen.Header.Get("Authorization"))
}

func TestTransport_TokenReadFailureSendsAnonymous(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return respond(http.StatusOK)(r)
	})
	tr := apiclient.NewTransport(base, &tokenStore{token: "abc", err: errors.New("disk")}, nil)

	resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, seen.Header.Get("Authorization"))
}

func TestTransport_HeaderIsolation(t *testing.T) {
	var seen []string
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r.Header.Get("Authorization"))
		return respond(http.StatusOK)(r)
	})
	store := &tokenStore{token: "A"}
	tr := apiclient.NewTransport(base, store, nil)

	req := httptest.NewRequest(http.MethodGet, "http://api.test/", nil)
	for _, token := range []string{"A", "B", ""} {
		store.set(token)
		resp, err := tr.RoundTrip(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, []string{"Bearer A", "Bearer B", ""}, seen)
}

func TestTransport_KeepsCallerRequestID(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return respond(http.StatusOK)(r)
	})
	tr := apiclient.NewTransport(base, &tokenStore{}, nil)

	req := httptest.NewRequest(http.MethodGet, "http://api.test/", nil)
	req.Header.Set(apiclient.RequestIDHeader, "fixed")
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "fixed", seen.Header.Get(apiclient.RequestIDHeader))
}

func TestTransport_RequestIDFromContext(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return respond(http.StatusOK)(r)
	})
	tr := apiclient.NewTransport(base, &tokenStore{}, nil)

	ctx := requestid.WithContext(context.Background(), "checkout-42")
	req := httptest.NewRequest(http.MethodGet, "http://api.test/", nil).WithContext(ctx)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "checkout-42", seen.Header.Get(apiclient.RequestIDHeader))
}

func TestTransport_Unauthorized(t *testing.T) {
	var order []string
	store := &tokenStore{token: "stale", events: &order}
	pub := &publisher{events: &order}
	tr := apiclient.NewTransport(respond(http.StatusUnauthorized), store, pub)

	req := httptest.NewRequest(http.MethodDelete, "http://api.test/api/v1/products/3/", nil)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "401 is returned unchanged")
	assert.Equal(t, []string{"clear", "publish"}, order, "tokens cleared before signal, both before return")

	token, _ := store.AccessToken(context.Background())
	assert.Empty(t, token)

	require.Len(t, pub.signals, 1)
	assert.Equal(t, http.MethodDelete, pub.signals[0].Method)
	assert.Equal(t, "/api/v1/products/3/", pub.signals[0].Path)
	assert.NotEmpty(t, pub.signals[0].RequestID)
}

func TestTransport_UnauthorizedSurvivesCancelledContext(t *testing.T) {
	var order []string
	store := &tokenStore{token: "stale", events: &order}
	pub := &publisher{events: &order}

	ctx, cancel := context.WithCancel(context.Background())
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		cancel()
		return respond(http.StatusUnauthorized)(r)
	})
	tr := apiclient.NewTransport(base, store, pub)

	req := httptest.NewRequest(http.MethodGet, "http://api.test/", nil).WithContext(ctx)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, []string{"clear", "publish"}, order)
}

func TestTransport_OtherStatusesDoNotSignal(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
		store := &tokenStore{token: "keep"}
		pub := &publisher{}
		tr := apiclient.NewTransport(respond(status), store, pub)

		resp, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Zero(t, pub.count(), "status %d", status)
		token, _ := store.AccessToken(context.Background())
		assert.Equal(t, "keep", token)
	}
}

func TestTransport_NetworkErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection refused")
	pub := &publisher{}
	tr := apiclient.NewTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), &tokenStore{token: "x"}, pub)

	_, err := tr.RoundTrip(httptest.NewRequest(http.MethodGet, "http://api.test/", nil))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, pub.count())
}
