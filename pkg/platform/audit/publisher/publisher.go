// Package publisher implements the audit sink used by every trust engine
// service.
//
// Emit never blocks on the store and never returns an error. In async mode
// events go into a bounded ring buffer drained by a background goroutine; in
// sync mode (tests, CLI) the store is called inline. Either way a store
// failure is absorbed: the event is written to the fallback slog logger and
// the caller carries on. An event pushed out of a full buffer goes to the
// same logger. After Close, Emit persists inline.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "civictrust/pkg/platform/audit"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 250 * time.Millisecond
	defaultStoreTimeout  = 2 * time.Second
)

// Publisher is the audit.Sink implementation.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuitBreaker
	sampler *sampler

	buffer        *ringBuffer
	flushInterval time.Duration
	storeTimeout  time.Duration

	mu       sync.RWMutex
	closed   bool
	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a ring buffer of the given size.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		p.buffer = newRingBuffer(capacity)
	}
}

// WithLogger sets the fallback logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithCircuitBreaker overrides the breaker threshold and cooldown.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *Publisher) {
		p.breaker = newCircuitBreaker(threshold, cooldown)
	}
}

// WithOpsSampleRate keeps only the given fraction of operations-category
// events. Per-operation overrides may be passed in rates.
func WithOpsSampleRate(rate float64, rates map[audit.Operation]float64) Option {
	return func(p *Publisher) {
		p.sampler = newSampler(rate)
		for op, r := range rates {
			p.sampler.setRate(op, r)
		}
	}
}

// WithFlushInterval sets how often the async drain loop wakes up on its own.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// NewPublisher creates a publisher over store. Call Close to flush and stop
// the drain goroutine in async mode.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:         store,
		logger:        slog.Default(),
		breaker:       newCircuitBreaker(5, 30*time.Second),
		sampler:       newSampler(1),
		flushInterval: defaultFlushInterval,
		storeTimeout:  defaultStoreTimeout,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drainLoop()
	}
	return p
}

// Emit records an event. It never blocks on the store and never fails.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.fallback(ctx, event, "audit emit panicked", nil)
		}
	}()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}
	if !p.sampler.keep(event) {
		p.metrics.incSampledOut()
		return
	}
	p.metrics.incEmitted(string(event.Operation.Category()))

	if p.buffer == nil {
		p.persist(context.WithoutCancel(ctx), event)
		return
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.persist(context.WithoutCancel(ctx), event)
		return
	}
	evicted, dropped := p.buffer.enqueue(event)
	p.mu.RUnlock()
	if dropped {
		p.metrics.incDropped()
		p.fallback(ctx, evicted, "audit buffer full, oldest event dropped", nil)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of buffered events not yet persisted.
func (p *Publisher) Pending() int {
	if p.buffer == nil {
		return 0
	}
	return p.buffer.len()
}

// Dropped returns the number of events discarded because the buffer was full.
func (p *Publisher) Dropped() int64 {
	if p.buffer == nil {
		return 0
	}
	return p.buffer.droppedCount()
}

// Close drains remaining events and stops the background goroutine.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.done)
	})
	p.wg.Wait()
	return nil
}

func (p *Publisher) drainLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.flush()
			return
		case <-p.wake:
			p.flush()
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	for {
		batch := p.buffer.dequeueBatch(defaultBatchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			p.persist(context.Background(), event)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) {
	if p.store == nil {
		p.fallback(ctx, event, "audit store not configured", nil)
		return
	}
	if !p.breaker.allow() {
		p.fallback(ctx, event, "audit store circuit open", nil)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	if err := p.store.Append(ctx, event); err != nil {
		p.breaker.recordFailure()
		p.metrics.incPersistFailures()
		p.metrics.setBreakerOpen(p.breaker.isOpen())
		p.fallback(ctx, event, "audit store append failed", err)
		return
	}
	p.breaker.recordSuccess()
	p.metrics.setBreakerOpen(false)
}

// fallback writes the event to the logger so the trail survives a store
// outage. Best effort.
func (p *Publisher) fallback(ctx context.Context, event audit.Event, reason string, err error) {
	p.metrics.incFallback()
	attrs := []any{
		"reason", reason,
		"operation", event.Operation,
		"severity", event.Severity,
		"correlation_id", event.CorrelationID,
		"subject", event.Subject,
		"message", event.Message,
		"metadata", event.Metadata,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	p.logger.WarnContext(ctx, "audit fallback", attrs...)
}
