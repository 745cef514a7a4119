package publisher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	audit "civictrust/pkg/platform/audit"
	"civictrust/pkg/platform/audit/store/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) Append(context.Context, audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("connection refused")
}

func (f *failingStore) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	pub.Emit(context.Background(), audit.Event{
		Operation:     audit.OpPoolSealed,
		CorrelationID: "corr-1",
	})

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.OpPoolSealed, events[0].Operation)
	assert.Equal(t, audit.SeverityInfo, events[0].Severity)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10), WithFlushInterval(5*time.Millisecond))

	for i := 0; i < 5; i++ {
		pub.Emit(context.Background(), audit.Event{Operation: audit.OpSignatureIngested})
	}
	require.NoError(t, pub.Close())

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.Equal(t, 0, pub.Pending())
}

func TestPublisher_StoreFailureFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	pub := NewPublisher(&failingStore{}, WithLogger(logger), WithMetrics(metrics))
	defer pub.Close()

	assert.NotPanics(t, func() {
		pub.Emit(context.Background(), audit.Event{
			Operation:     audit.OpImpactApplied,
			CorrelationID: "corr-fallback",
		})
	})

	assert.Contains(t, buf.String(), "audit fallback")
	assert.Contains(t, buf.String(), "corr-fallback")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PersistFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackLogged))
}

// gateStore holds the first Append until release is closed.
type gateStore struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []audit.Event
}

func newGateStore() *gateStore {
	return &gateStore{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateStore) Append(ctx context.Context, event audit.Event) error {
	g.once.Do(func() {
		close(g.entered)
		select {
		case <-g.release:
		case <-ctx.Done():
		}
	})
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event)
	return nil
}

func (g *gateStore) subjects() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.events))
	for _, e := range g.events {
		out = append(out, e.Subject)
	}
	return out
}

func TestPublisher_OverflowLogsDroppedEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	store := newGateStore()
	pub := NewPublisher(store, WithAsyncBuffer(2), WithLogger(logger), WithMetrics(metrics), WithFlushInterval(time.Hour))

	pub.Emit(context.Background(), audit.Event{Operation: audit.OpSignatureIngested, Subject: "pool-0"})
	<-store.entered

	for _, subject := range []string{"pool-1", "pool-2", "pool-3"} {
		pub.Emit(context.Background(), audit.Event{
			Operation:     audit.OpSignatureIngested,
			Subject:       subject,
			CorrelationID: "corr-" + subject,
		})
	}
	close(store.release)
	require.NoError(t, pub.Close())

	assert.Equal(t, []string{"pool-0", "pool-2", "pool-3"}, store.subjects())
	assert.Equal(t, int64(1), pub.Dropped())
	assert.Contains(t, buf.String(), "audit buffer full, oldest event dropped")
	assert.Contains(t, buf.String(), "corr-pool-1")
	assert.NotContains(t, buf.String(), "corr-pool-2")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackLogged))
}

func TestPublisher_EmitAfterCloseIsPersisted(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4), WithFlushInterval(time.Hour))
	require.NoError(t, pub.Close())

	pub.Emit(context.Background(), audit.Event{Operation: audit.OpPoolSealed, CorrelationID: "corr-late"})

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "corr-late", events[0].CorrelationID)
	assert.Equal(t, 0, pub.Pending())
}

func TestPublisher_CircuitOpensAfterThreshold(t *testing.T) {
	store := &failingStore{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	pub := NewPublisher(store, WithLogger(logger), WithCircuitBreaker(2, time.Hour))
	defer pub.Close()

	for i := 0; i < 5; i++ {
		pub.Emit(context.Background(), audit.Event{Operation: audit.OpPoolSealed})
	}

	assert.Equal(t, 2, store.Calls(), "store should not be called while the circuit is open")
}

func TestPublisher_NilStoreIsAbsorbed(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	pub := NewPublisher(nil, WithLogger(logger))
	defer pub.Close()

	assert.NotPanics(t, func() {
		pub.Emit(context.Background(), audit.Event{Operation: audit.OpPoolSealed})
	})
}

func TestPublisher_SamplingKeepsComplianceEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithOpsSampleRate(0, nil))
	defer pub.Close()

	pub.Emit(context.Background(), audit.Event{Operation: audit.OpSignatureIngested})
	pub.Emit(context.Background(), audit.Event{Operation: audit.OpPoolSealed})
	pub.Emit(context.Background(), audit.Event{Operation: audit.OpEndorsementDenied})

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.OpPoolSealed, events[0].Operation)
	assert.Equal(t, audit.OpEndorsementDenied, events[1].Operation)
}

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	b := newRingBuffer(2)
	_, dropped := b.enqueue(audit.Event{Subject: "a"})
	assert.False(t, dropped)
	_, dropped = b.enqueue(audit.Event{Subject: "b"})
	assert.False(t, dropped)
	evicted, dropped := b.enqueue(audit.Event{Subject: "c"})
	assert.True(t, dropped)
	assert.Equal(t, "a", evicted.Subject)

	batch := b.dequeueBatch(10)
	require.Len(t, batch, 2)
	assert.Equal(t, "b", batch[0].Subject)
	assert.Equal(t, "c", batch[1].Subject)
	assert.Equal(t, int64(1), b.droppedCount())
	assert.Equal(t, 0, b.len())
}

func TestCircuitBreaker_HalfOpensAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.recordFailure()
	assert.False(t, cb.allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.allow())
	assert.False(t, cb.isOpen())
}
