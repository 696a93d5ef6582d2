package session

import (
	"context"
	"log/slog"

	"github.com/stockly-app/sessionkit/pkg/logger"
)

// ReportKind classifies a login failure.
type ReportKind string

const (
	// ReportValidation is returned for empty username or password.
	ReportValidation ReportKind = "validation"
	// ReportMissingCredentials means the server answered without tokens.
	ReportMissingCredentials ReportKind = "missing_credentials"
	// ReportLoginFailed covers network errors and non-2xx responses.
	ReportLoginFailed ReportKind = "login_failed"
)

// Report is a user-facing login failure.
type Report struct {
	Kind    ReportKind
	Title   string
	Message string
	// Code is the HTTP status as text, "UNKNOWN" for network failures, and
	// empty for local validation.
	Code string
}

// Reporter shows login failures to the user.
type Reporter interface {
	Report(ctx context.Context, r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Report)

func (f ReporterFunc) Report(ctx context.Context, r Report) { f(ctx, r) }

type logReporter struct {
	log *slog.Logger
}

func (l logReporter) Report(ctx context.Context, r Report) {
	l.log.WarnContext(ctx, r.Message,
		logger.Event("login_failed"),
		slog.String("kind", string(r.Kind)),
		slog.String("title", r.Title),
		slog.String("code", r.Code),
	)
}
