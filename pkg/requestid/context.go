package requestid

import (
	"context"
	"log/slog"

	"github.com/stockly-app/sessionkit/pkg/logger"
)

type contextKey struct{}

// WithContext stores id so that requests made with ctx carry it.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// LogExtractor is a logger.ContextExtractor that tags records with the id
// carried by ctx.
func LogExtractor(ctx context.Context) (slog.Attr, bool) {
	id := FromContext(ctx)
	return logger.RequestID(id), id != ""
}
