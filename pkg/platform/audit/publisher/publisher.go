// Package publisher fronts an audit.Store with optional asynchronous buffering.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "pharmatrace/pkg/platform/audit"
)

var (
	ErrBufferFull   = errors.New("audit buffer full")
	ErrNotListable  = errors.New("audit store does not support listing")
	errPublisherOff = errors.New("audit publisher closed")
)

// Publisher writes events synchronously by default. WithAsyncBuffer switches
// to a bounded queue drained by one goroutine; Close drains it.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	now     func() time.Time
	sampler *Sampler

	queue  chan audit.Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with the given queue size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithSampler drops a share of operations events before they are queued.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) { p.sampler = s }
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit normalizes and records event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event.Normalize(p.now())
	if p.sampler != nil && !p.sampler.Keep(event) {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPublisherOff
	}
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		}
		return ErrBufferFull
	}
}

// List returns the trail for identity when the store supports reads.
func (p *Publisher) List(ctx context.Context, identity string) ([]audit.Event, error) {
	r, ok := p.store.(audit.Reader)
	if !ok {
		return nil, ErrNotListable
	}
	return r.ListByIdentity(ctx, identity)
}

// Close stops accepting events and waits for the queue to drain.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
	return nil
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.queue {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}
