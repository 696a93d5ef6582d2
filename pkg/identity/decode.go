package identity

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/stockly-app/sessionkit/pkg/logger"
)

// PlaceholderUsername is used when a token carries no username.
const PlaceholderUsername = "المستخدم"

var (
	ErrMalformedToken = errors.New("identity: malformed token")
	ErrInvalidPayload = errors.New("identity: invalid token payload")
)

// FromAccessToken reads the user claims from the payload segment of a
// JWT-shaped token.
//
// The signature is NOT verified. The result is only good for showing who is
// signed in and must never drive an authorization decision.
func FromAccessToken(token string) (*User, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, ErrMalformedToken
	}

	segment := strings.NewReplacer("-", "+", "_", "/").Replace(parts[1])
	segment = strings.TrimRight(segment, "=")

	payload, err := base64.RawStdEncoding.DecodeString(segment)
	if err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}

	claims, err := ParseProfile(payload)
	if err != nil {
		return nil, err
	}
	return claims.TokenUser(PlaceholderUsername), nil
}

// Decode is FromAccessToken for callers that only want a best-effort answer:
// failures are logged at warn level and reported as nil.
func Decode(ctx context.Context, log *slog.Logger, token string) *User {
	u, err := FromAccessToken(token)
	if err != nil {
		if log != nil {
			log.WarnContext(ctx, "unable to decode access token payload",
				logger.Component("identity"),
				logger.Error(err),
			)
		}
		return nil
	}
	return u
}
