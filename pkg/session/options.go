package session

import (
	"log/slog"

	"github.com/stockly-app/sessionkit/pkg/messages"
)

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithReporter sets where login failures are shown. The default writes them
// to the logger at warn level.
func WithReporter(r Reporter) Option {
	return func(m *Manager) {
		m.reporter = r
	}
}

// WithMessages sets the catalog for report texts. Default is Arabic.
func WithMessages(c *messages.Catalog) Option {
	return func(m *Manager) {
		if c != nil {
			m.messages = c
		}
	}
}
