// Package apitest runs a fake Stockly backend for tests. It implements the
// login endpoint and a few bearer-protected resources, issues HS256 access
// tokens and can expire or revoke them to provoke 401 responses.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stockly-app/sessionkit/pkg/requestid"
)

// Account is a user the fake backend accepts.
type Account struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

type reply struct {
	status int
	body   any
}

// Server is the fake backend. Zero value is not usable; use New.
type Server struct {
	*httptest.Server

	signer signer

	mu          sync.Mutex
	accounts    map[string]Account
	revoked     map[string]struct{}
	issued      int
	ttl         time.Duration
	now         func() time.Time
	includeUser bool
	loginReply  *reply
	authHeaders []string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		signer:      signer{key: []byte("apitest-signing-key-0123456789abcdef")},
		accounts:    make(map[string]Account),
		revoked:     make(map[string]struct{}),
		ttl:         5 * time.Minute,
		now:         time.Now,
		includeUser: true,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)

	r.Post("/api/auth/login/", s.login)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/products/", s.products)
		r.Get("/products/{id}/", s.product)
		r.Get("/users/me/", s.me)
	})
	return r
}

// AddAccount registers credentials the login endpoint accepts.
func (s *Server) AddAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Username] = a
}

// OmitUser makes successful logins return tokens without a user object, so
// clients must fall back to the token payload.
func (s *Server) OmitUser() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.includeUser = false
}

// ReplyToLogin overrides the login endpoint with a fixed response.
func (s *Server) ReplyToLogin(status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginReply = &reply{status: status, body: body}
}

// RevokeAll invalidates every token issued so far.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= s.issued; i++ {
		s.revoked[jti(i)] = struct{}{}
	}
}

// Advance moves the server clock forward, expiring tokens older than the
// access token lifetime (five minutes).
func (s *Server) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.now
	s.now = func() time.Time { return base().Add(d) }
}

// AuthHeaders returns the Authorization header of every protected request
// in arrival order.
func (s *Server) AuthHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.authHeaders...)
}

// Issue creates an access token for username the protected endpoints
// accept.
func (s *Server) Issue(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username, s.accounts[username].ID)
}

func (s *Server) issueLocked(username string, id int64) string {
	s.issued++
	now := s.now()
	token, err := s.signer.sign(accessClaims{
		TokenType: "access",
		UserID:    id,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti(s.issued),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return token
}

// authorizeLocked returns the claims of a valid, unrevoked bearer token.
func (s *Server) authorizeLocked(header string) (*accessClaims, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, false
	}
	claims, err := s.signer.verify(token, s.now())
	if err != nil {
		return nil, false
	}
	if _, revoked := s.revoked[claims.ID]; revoked {
		return nil, false
	}
	return claims, true
}

func jti(n int) string {
	return fmt.Sprintf("t%d", n)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	override := s.loginReply
	s.mu.Unlock()
	if override != nil {
		writeJSON(w, override.status, override.body)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[req.Username]
	if !ok || acc.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})
		return
	}

	resp := map[string]any{
		"access":  s.issueLocked(acc.Username, acc.ID),
		"refresh": fmt.Sprintf("refresh-%d", s.issued),
	}
	if s.includeUser {
		resp["user"] = userJSON(acc)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")

		s.mu.Lock()
		s.authHeaders = append(s.authHeaders, header)
		claims, ok := s.authorizeLocked(header)
		s.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

type claimsKey struct{}

func withClaims(ctx context.Context, c *accessClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFrom(ctx context.Context) *accessClaims {
	if c, ok := ctx.Value(claimsKey{}).(*accessClaims); ok {
		return c
	}
	return &accessClaims{}
}

func (s *Server) products(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    2,
		"next":     nil,
		"previous": nil,
		"results": []map[string]any{
			{"id": 1, "name": "Tea"},
			{"id": 2, "name": "Coffee"},
		},
	})
}

func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != "1" && id != "2" {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	s.mu.Lock()
	acc := s.accounts[claims.Username]
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, userJSON(acc))
}

func userJSON(a Account) map[string]any {
	u := map[string]any{"id": a.ID, "username": a.Username}
	if a.Email != "" {
		u["email"] = a.Email
	}
	if a.FirstName != "" {
		u["first_name"] = a.FirstName
	}
	if a.LastName != "" {
		u["last_name"] = a.LastName
	}
	return u
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
