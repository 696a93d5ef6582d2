package authevents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stockly-app/sessionkit/pkg/logger"
)

// Signal reports that the server rejected a request's credentials.
type Signal struct {
	At        time.Time
	Method    string
	Path      string
	RequestID string
}

// Handler reacts to a Signal. It runs on the publishing goroutine.
type Handler func(ctx context.Context, sig Signal)

// Publisher is the sending side, implemented by *Bus.
type Publisher interface {
	Publish(ctx context.Context, sig Signal)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

type registration struct {
	id uint64
	fn Handler
}

// Bus delivers unauthorized signals. Handlers registered with OnUnauthorized
// run synchronously inside Publish, in registration order, so their effects
// are complete before Publish returns. Channel subscribers receive signals
// without blocking the publisher; a subscriber that has not drained its
// pending signal does not get a second one.
//
// All methods are safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers []registration
	nextID   uint64
	subs     map[chan Signal]struct{}
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[chan Signal]struct{}),
		done: make(chan struct{}),
		log:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With(logger.Component("authevents"))
	return b
}

// OnUnauthorized registers fn and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (b *Bus) OnUnauthorized(fn Handler) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, registration{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.removeHandler(id) })
	}
}

// Subscribe returns a channel receiving signals until ctx is cancelled or the
// bus is closed, after which the channel is closed.
func (b *Bus) Subscribe(ctx context.Context) <-chan Signal {
	ch := make(chan Signal, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}

	if ctx.Done() != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			select {
			case <-ctx.Done():
				b.unsubscribe(ch)
			case <-b.done:
			}
		}()
	}
	return ch
}

// Publish runs every handler and then notifies channel subscribers. A
// panicking handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, sig Signal) {
	if sig.At.IsZero() {
		sig.At = time.Now()
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]registration, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	// Handlers run without the lock so they may register or unregister.
	for _, h := range handlers {
		b.invoke(ctx, h.fn, sig)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- sig:
		default:
			// A signal is already pending for this subscriber.
		}
	}
}

// Len reports the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Close drops all handlers and closes subscriber channels. Publish becomes a
// no-op. Safe to call multiple times.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.handlers = nil
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

func (b *Bus) invoke(ctx context.Context, fn Handler, sig Signal) {
	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "unauthorized handler panicked",
				logger.Error(fmt.Errorf("%w: %v", ErrHandlerPanic, r)),
				logger.Path(sig.Path),
			)
		}
	}()
	fn(ctx, sig)
}

func (b *Bus) removeHandler(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *Bus) unsubscribe(ch chan Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}
