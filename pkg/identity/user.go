package identity

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// User is the signed-in user as the client knows it. It is display data: the
// server remains the only authority on who the bearer token belongs to.
type User struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Clone returns a deep copy so snapshots handed to callers cannot alias
// manager state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Email = cloneString(u.Email)
	c.FirstName = cloneString(u.FirstName)
	c.LastName = cloneString(u.LastName)
	return &c
}

// DisplayName prefers "First Last" and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	if len(parts) == 0 {
		return u.Username
	}
	return strings.Join(parts, " ")
}

// Profile is the loosely typed user object found in login responses and token
// claims. Every field is optional and read on its own: a field of the wrong
// type is treated as absent and never hides the others. The id may arrive as
// a number or a string.
type Profile map[string]json.RawMessage

// ParseProfile reads a JSON object. Anything else, including null, is
// ErrInvalidPayload.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Join(ErrInvalidPayload, err)
	}
	if p == nil {
		return nil, ErrInvalidPayload
	}
	return p, nil
}

// TokenUser converts token claims: user_id first, then id. username is used
// when the claims carry none.
func (p Profile) TokenUser(username string) *User {
	return p.user(username, "user_id", "id")
}

// ResponseUser converts the user object of a login response: id first, then
// user_id. username is used when the object carries none.
func (p Profile) ResponseUser(username string) *User {
	return p.user(username, "id", "user_id")
}

func (p Profile) user(username string, idKeys ...string) *User {
	var id int64
	for _, key := range idKeys {
		if id = CoerceID(p[key]); id != 0 {
			break
		}
	}
	if name := p.str("username"); name != nil && *name != "" {
		username = *name
	}
	return &User{
		ID:        id,
		Username:  username,
		Email:     p.str("email"),
		FirstName: p.str("first_name"),
		LastName:  p.str("last_name"),
	}
}

// str returns the string at key, or nil when it is missing, null or not a
// string.
func (p Profile) str(key string) *string {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}

// CoerceID turns a JSON number or numeric string into a non-negative id.
// Anything else, including negative or fractional values, yields 0.
func CoerceID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0
	}
	return int64(f)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
