package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockly-app/sessionkit/pkg/authevents"
	"github.com/stockly-app/sessionkit/pkg/credstore"
	"github.com/stockly-app/sessionkit/pkg/identity"
	"github.com/stockly-app/sessionkit/pkg/session"
)

type postFunc func(ctx context.Context, in, out any) error

// fakeClient records login requests and answers with fn.
type fakeClient struct {
	mu    sync.Mutex
	paths []string
	body  []map[string]string
	fn    postFunc
}

func (f *fakeClient) Post(ctx context.Context, path string, in, out any) error {
	data, _ := json.Marshal(in)
	var body map[string]string
	_ = json.Unmarshal(data, &body)

	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.body = append(f.body, body)
	fn := f.fn
	f.mu.Unlock()

	return fn(ctx, in, out)
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

// replyWith decodes body into out the way the JSON client would.
func replyWith(body any) postFunc {
	return func(ctx context.Context, in, out any) error {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, out)
	}
}

func failWith(err error) postFunc {
	return func(context.Context, any, any) error { return err }
}

type recorder struct {
	mu      sync.Mutex
	reports []session.Report
}

func (r *recorder) Report(ctx context.Context, rep session.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

func (r *recorder) all() []session.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]session.Report(nil), r.reports...)
}

// flakyStore wraps a real store with injectable failures and a gate that
// holds ReadUser after it has read.
type flakyStore struct {
	*credstore.Store
	saveErr  error
	clearErr error
	reading  chan struct{}
	gate     chan struct{}
}

func (f *flakyStore) SaveSession(ctx context.Context, access, refresh string, u *identity.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveSession(ctx, access, refresh, u)
}

func (f *flakyStore) Clear(ctx context.Context) error {
	if err := f.Store.Clear(ctx); err != nil {
		return err
	}
	return f.clearErr
}

func (f *flakyStore) ReadUser(ctx context.Context) *identity.User {
	u := f.Store.ReadUser(ctx)
	if f.gate != nil {
		close(f.reading)
		<-f.gate
	}
	return u
}

type fixture struct {
	client  *fakeClient
	store   *credstore.Store
	bus     *authevents.Bus
	reports *recorder
	manager *session.Manager
}

func newFixture(t *testing.T, fn postFunc, opts ...session.Option) *fixture {
	t.Helper()

	f := &fixture{
		client:  &fakeClient{fn: fn},
		store:   credstore.New(credstore.NewMemoryBackend()),
		bus:     authevents.New(),
		reports: &recorder{},
	}
	t.Cleanup(func() { _ = f.bus.Close() })

	opts = append([]session.Option{session.WithReporter(f.reports)}, opts...)
	m, err := session.New(f.client, f.store, f.bus, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	f.manager = m
	return f
}
