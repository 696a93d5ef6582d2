package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockly-app/sessionkit/pkg/requestid"
)

func login(t *testing.T, s *Server, username, password string) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(s.URL+"/api/auth/login/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func get(t *testing.T, s *Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLogin(t *testing.T) {
	s := New(t)
	s.AddAccount(Account{ID: 3, Username: "sam", Password: "pw", FirstName: "Sam"})

	t.Run("valid credentials", func(t *testing.T) {
		resp, out := login(t, s, "sam", "pw")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, out["access"])
		assert.NotEmpty(t, out["refresh"])
		user, ok := out["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "sam", user["username"])
		assert.Equal(t, "Sam", user["first_name"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, out := login(t, s, "sam", "nope")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, out["detail"], "No active account")
	})

	t.Run("omit user", func(t *testing.T) {
		s.OmitUser()
		_, out := login(t, s, "sam", "pw")
		assert.NotContains(t, out, "user")
	})

	t.Run("fixed reply", func(t *testing.T) {
		s.ReplyToLogin(http.StatusServiceUnavailable, map[string]string{"error": "down"})
		resp, out := login(t, s, "sam", "pw")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "down", out["error"])
	})
}

func TestProtectedRoutes(t *testing.T) {
	s := New(t)
	s.AddAccount(Account{ID: 3, Username: "sam", Password: "pw"})
	token := s.Issue("sam")

	assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/products/", token).StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/products/9/", token).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/v1/products/", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/v1/products/", token+"x").StatusCode)

	resp := get(t, s, "/api/v1/users/me/", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "sam", me["username"])
	assert.EqualValues(t, 3, me["id"])

	headers := s.AuthHeaders()
	require.Len(t, headers, 5)
	assert.Equal(t, "", headers[2])
}

func TestRevokeAndExpire(t *testing.T) {
	s := New(t)
	s.AddAccount(Account{ID: 1, Username: "sam", Password: "pw"})

	t.Run("revoked tokens are rejected", func(t *testing.T) {
		old := s.Issue("sam")
		s.RevokeAll()
		assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/v1/products/", old).StatusCode)
		assert.Equal(t, http.StatusOK, get(t, s, "/api/v1/products/", s.Issue("sam")).StatusCode)
	})

	t.Run("expired tokens are rejected", func(t *testing.T) {
		token := s.Issue("sam")
		s.Advance(6 * time.Minute)
		assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/v1/products/", token).StatusCode)
	})
}

func TestRequestIDEcho(t *testing.T) {
	s := New(t)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/api/v1/products/", nil)
	require.NoError(t, err)
	req.Header.Set(requestid.Header, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get(requestid.Header))
}

func TestSigner(t *testing.T) {
	sg := signer{key: []byte("k")}
	now := time.Unix(1_700_000_000, 0)
	claims := accessClaims{
		TokenType: "access",
		UserID:    9,
		Username:  "x",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "t1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}

	token, err := sg.sign(claims)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	got, err := sg.verify(token, now)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.UserID)
	assert.Equal(t, "x", got.Username)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, now.Add(time.Minute).Unix(), got.ExpiresAt.Unix())

	_, err = sg.verify(token, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	_, err = signer{key: []byte("other")}.verify(token, now)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = sg.verify("a.b", now)
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)

	refresh, err := sg.sign(accessClaims{
		TokenType:        "refresh",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))},
	})
	require.NoError(t, err)
	_, err = sg.verify(refresh, now)
	assert.ErrorIs(t, err, errWrongTokenType)

	noExpiry, err := sg.sign(accessClaims{TokenType: "access"})
	require.NoError(t, err)
	_, err = sg.verify(noExpiry, now)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}
