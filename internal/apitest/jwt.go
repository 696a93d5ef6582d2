package apitest

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errWrongTokenType = errors.New("apitest: token is not an access token")

// accessClaims mirrors the payload of the backend's access tokens.
type accessClaims struct {
	TokenType string `json:"token_type"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// signer mints and checks HS256 tokens.
type signer struct {
	key []byte
}

func (s signer) sign(claims accessClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

func (s signer) verify(token string, now time.Time) (*accessClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &accessClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, errWrongTokenType
	}
	return claims, nil
}

// Token builds an unsigned JWT-shaped token with claims as payload. The
// client never verifies signatures, so this is enough for decoder tests.
func Token(claims map[string]any) string {
	enc := base64.RawURLEncoding
	payload, _ := json.Marshal(claims)
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." + enc.EncodeToString(payload) + ".sig"
}
