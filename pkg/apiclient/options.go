package apiclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/stockly-app/sessionkit/pkg/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "stockly-sessionkit/1.0"
	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 8 << 20
)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	log        *slog.Logger
	metrics    *Metrics
}

func newOptions(opts []Option) *options {
	o := &options{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(logger.Component("apiclient"))
	return o
}

// Option configures a Client or Transport.
type Option func(*options)

// WithHTTPClient uses c as the template for the client. Its Transport is
// wrapped, never replaced.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout. Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records request counts and latency. See NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
