package apiclient_test

import (
	"context"
	"sync"

	"github.com/stockly-app/sessionkit/pkg/authevents"
)

// tokenStore is an in-memory TokenStore that records call order into a
// shared log.
type tokenStore struct {
	mu     sync.Mutex
	token  string
	err    error
	events *[]string
}

func (s *tokenStore) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.err
}

func (s *tokenStore) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if s.events != nil {
		*s.events = append(*s.events, "clear")
	}
	return nil
}

func (s *tokenStore) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type publisher struct {
	mu      sync.Mutex
	signals []authevents.Signal
	events  *[]string
}

func (p *publisher) Publish(ctx context.Context, sig authevents.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	if p.events != nil {
		*p.events = append(*p.events, "publish")
	}
}

func (p *publisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signals)
}
