package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/stockly-app/sessionkit/pkg/identity"
	"github.com/stockly-app/sessionkit/pkg/logger"
	"github.com/stockly-app/sessionkit/pkg/secrets"
)

// DefaultNamespace prefixes every storage key.
const DefaultNamespace = "@stockly"

// Key suffixes under the namespace.
const (
	accessTokenSuffix  = "access_token"
	refreshTokenSuffix = "refresh_token"
	userInfoSuffix     = "user_info"
)

// Keys holds the fully qualified storage keys of one namespace.
type Keys struct {
	AccessToken  string
	RefreshToken string
	UserInfo     string
}

// KeysFor builds the key set for a namespace, e.g. "@stockly/access_token".
func KeysFor(namespace string) Keys {
	ns := strings.TrimRight(namespace, "/")
	if ns == "" {
		ns = DefaultNamespace
	}
	return Keys{
		AccessToken:  ns + "/" + accessTokenSuffix,
		RefreshToken: ns + "/" + refreshTokenSuffix,
		UserInfo:     ns + "/" + userInfoSuffix,
	}
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace changes the key prefix.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.keys = KeysFor(ns)
	}
}

// WithLogger sets the logger for decode warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithSealer encrypts every value at rest. The storage key is bound as
// associated data, so a value copied under another key fails to open.
func WithSealer(sealer *secrets.Sealer) Option {
	return func(s *Store) {
		s.sealer = sealer
	}
}

// Store persists the access token, refresh token and user record. Values
// survive process restarts when the backend is durable.
type Store struct {
	backend Backend
	keys    Keys
	sealer  *secrets.Sealer
	log     *slog.Logger
}

// New creates a credential store on top of backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		keys:    KeysFor(DefaultNamespace),
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("credstore"))
	return s
}

// Keys returns the storage keys in use.
func (s *Store) Keys() Keys {
	return s.keys
}

// SetTokens writes both tokens in one backend operation.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	values, err := s.seal(map[string]string{
		s.keys.AccessToken:  access,
		s.keys.RefreshToken: refresh,
	})
	if err != nil {
		return err
	}
	return s.backend.SetMany(ctx, values)
}

// ClearTokens removes both tokens. The user record is left alone.
func (s *Store) ClearTokens(ctx context.Context) error {
	return s.backend.Delete(ctx, s.keys.AccessToken, s.keys.RefreshToken)
}

// AccessToken returns the stored access token or "" when none is stored.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.keys.AccessToken)
}

// RefreshToken returns the stored refresh token or "" when none is stored.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.keys.RefreshToken)
}

// PersistUser stores u as JSON. A nil user removes the record.
func (s *Store) PersistUser(ctx context.Context, u *identity.User) error {
	if u == nil {
		return s.backend.Delete(ctx, s.keys.UserInfo)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return errors.Join(ErrCorruptValue, err)
	}
	values, err := s.seal(map[string]string{s.keys.UserInfo: string(data)})
	if err != nil {
		return err
	}
	return s.backend.SetMany(ctx, values)
}

// ReadUser returns the persisted user. Missing, unreadable or malformed
// records all yield nil; the latter two are logged.
func (s *Store) ReadUser(ctx context.Context) *identity.User {
	raw, err := s.get(ctx, s.keys.UserInfo)
	if err != nil {
		s.log.WarnContext(ctx, "unable to read stored user", logger.Error(err))
		return nil
	}
	if raw == "" {
		return nil
	}

	var u identity.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.log.WarnContext(ctx, "stored user record is malformed", logger.Error(err))
		return nil
	}
	return &u
}

// SaveSession writes tokens and user together so a reader never observes
// tokens without the matching user.
func (s *Store) SaveSession(ctx context.Context, access, refresh string, u *identity.User) error {
	values := map[string]string{
		s.keys.AccessToken:  access,
		s.keys.RefreshToken: refresh,
	}
	if u != nil {
		data, err := json.Marshal(u)
		if err != nil {
			return errors.Join(ErrCorruptValue, err)
		}
		values[s.keys.UserInfo] = string(data)
	}

	sealed, err := s.seal(values)
	if err != nil {
		return err
	}
	if err := s.backend.SetMany(ctx, sealed); err != nil {
		return err
	}
	if u == nil {
		return s.backend.Delete(ctx, s.keys.UserInfo)
	}
	return nil
}

// Clear removes tokens and user in one backend operation.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, s.keys.AccessToken, s.keys.RefreshToken, s.keys.UserInfo)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	if s.sealer == nil {
		return v, nil
	}
	plain, err := s.sealer.OpenString(v, key)
	if err != nil {
		return "", errors.Join(ErrCorruptValue, err)
	}
	return plain, nil
}

func (s *Store) seal(values map[string]string) (map[string]string, error) {
	if s.sealer == nil {
		return values, nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		sealed, err := s.sealer.SealString(v, k)
		if err != nil {
			return nil, err
		}
		out[k] = sealed
	}
	return out, nil
}
