// Package publisher emits audit events to a Store, synchronously or through a bounded
// buffer drained by one background goroutine. Audit is best effort: a slow or failing
// store trips a circuit breaker and events are dropped rather than blocking callers.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "docverify/pkg/domain"
	audit "docverify/pkg/platform/audit"
	"docverify/pkg/platform/circuit"
)

var (
	ErrBufferFull  = errors.New("audit buffer full")
	ErrCircuitOpen = errors.New("audit circuit open")
	ErrClosed      = errors.New("audit publisher closed")
)

// Publisher is safe for concurrent use.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuit.Breaker

	bufferSize int
	events     chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithBreaker replaces the default breaker (5 failures, 30s cooldown).
func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// NewPublisher creates a publisher. Call Close to drain an async buffer.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("audit", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second))
	}
	if p.bufferSize > 0 {
		p.events = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

// Emit records an event. A zero Timestamp is set to now.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.incDropped("closed")
		return ErrClosed
	}

	if p.events == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.incDropped("buffer_full")
		p.logger.WarnContext(ctx, "audit buffer full, dropping event", "action", event.Action)
		return ErrBufferFull
	}
}

// List returns the events recorded for a user.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close stops accepting events and waits for the buffer to drain.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.events != nil {
		close(p.events)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.events {
		_ = p.persist(context.Background(), event)
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		p.metrics.incDropped("circuit_open")
		return ErrCircuitOpen
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.incPersistFailures()
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.metrics.setCircuitBreakerState(true)
			p.logger.ErrorContext(ctx, "audit store circuit opened", "error", err)
		}
		p.logger.ErrorContext(ctx, "failed to persist audit event", "action", event.Action, "error", err)
		return err
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.setCircuitBreakerState(false)
		p.logger.InfoContext(ctx, "audit store circuit closed")
	}
	p.metrics.incPersisted()
	return nil
}
