package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockly-app/sessionkit/pkg/authevents"
	"github.com/stockly-app/sessionkit/pkg/logger"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

// Client sends JSON requests to the Stockly API through a Transport.
// Safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	log       *slog.Logger
}

// New creates a client for baseURL. tokens supplies the bearer token and
// receives ClearTokens on 401; events receives the unauthorized signal.
func New(baseURL string, tokens TokenStore, events authevents.Publisher, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, ErrMissingTokenSrc
	}

	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	o := newOptions(opts)

	hc := &http.Client{}
	if o.httpClient != nil {
		copied := *o.httpClient
		hc = &copied
	}
	hc.Timeout = o.timeout
	hc.Transport = &Transport{
		base:    orDefault(hc.Transport),
		tokens:  tokens,
		events:  events,
		log:     o.log,
		metrics: o.metrics,
	}

	return &Client{
		baseURL:   base,
		http:      hc,
		userAgent: o.userAgent,
		log:       o.log,
	}, nil
}

// BaseURL returns the normalised base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying client for callers that need raw access.
// Requests through it still carry the token and trigger the 401 handling.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Do sends in as JSON (when non-nil) to path and decodes a 2xx body into out
// (when non-nil). Non-2xx responses return *Error.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.DoRaw(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Join(ErrDecodeResponse, err)
	}
	return nil
}

// DoRaw is Do without decoding; it returns the 2xx response body.
func (c *Client) DoRaw(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Join(ErrEncodeRequest, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.DebugContext(ctx, "api request failed",
			logger.Method(method),
			logger.Path(path),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if len(raw) > maxResponseSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrResponseTooLarge, maxResponseSize)
	}

	c.log.DebugContext(ctx, "api request",
		logger.Method(method),
		logger.Path(path),
		logger.StatusCode(resp.StatusCode),
		logger.Duration(time.Since(start)),
		logger.RequestID(requestID(resp)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPatch, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// GetList fetches path and normalises the result with NormalizeList.
func GetList[T any](ctx context.Context, c *Client, path string) (List[T], error) {
	raw, err := c.DoRaw(ctx, http.MethodGet, path, nil)
	if err != nil {
		return List[T]{Results: []T{}}, err
	}
	return NormalizeList[T](raw)
}

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidBaseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: host is required", ErrInvalidBaseURL)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func requestID(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Header.Get(RequestIDHeader)
}

func orDefault(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
