package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/metrics"
	"github.com/charleshuang3/cf-ping/internal/models"
	"github.com/charleshuang3/cf-ping/internal/storage"
)

// ErrUnknownEntity is returned for names outside the configured allow-list.
var ErrUnknownEntity = errors.New("unknown entity")

// Dispatcher hands notifications to background delivery.
type Dispatcher interface {
	Dispatch(entity, message string)
}

// Options configures a Monitor.
type Options struct {
	Entities        []string
	Interval        time.Duration
	Threshold       time.Duration
	EntityTimeout   time.Duration
	MaxConcurrency  int
	ConflictRetries int
}

// Monitor applies pings and sweep ticks to the record store.
type Monitor struct {
	opts       Options
	store      storage.Store
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Collector
	now        func() time.Time

	allowed map[string]struct{}
	locks   *keyedMutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a monitor for the configured entities.
func New(opts Options, store storage.Store, dispatcher Dispatcher, logger *slog.Logger, collector *metrics.Collector) *Monitor {
	if opts.Interval < time.Second {
		opts.Interval = time.Minute
	}
	if opts.EntityTimeout <= 0 {
		opts.EntityTimeout = 10 * time.Second
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 1
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	allowed := make(map[string]struct{}, len(opts.Entities))
	for _, name := range opts.Entities {
		allowed[name] = struct{}{}
	}

	return &Monitor{
		opts:       opts,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    collector,
		now:        time.Now,
		allowed:    allowed,
		locks:      newKeyedMutex(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// WithClock replaces the wall clock, for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Entities returns the configured entity names.
func (m *Monitor) Entities() []string {
	return append([]string(nil), m.opts.Entities...)
}

// Threshold returns the silence threshold in seconds.
func (m *Monitor) Threshold() int64 {
	return int64(m.opts.Threshold / time.Second)
}

// Now returns the monitor's notion of the current unix time.
func (m *Monitor) Now() int64 {
	return m.now().Unix()
}

// Allowed reports whether name is on the allow-list.
func (m *Monitor) Allowed(name string) bool {
	_, ok := m.allowed[name]
	return ok
}

// Start launches the sweep loop in a goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop requests graceful loop termination and waits until it is done.
func (m *Monitor) Stop() {
	select {
	case <-m.doneCh:
		return
	default:
	}
	close(m.stopCh)
	<-m.doneCh
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

type decideFunc func(existing *models.EntityStatus) engine.Decision

// apply runs read-decide-write for one entity under its lock. A lost
// conditional write means another process changed the record; the decision
// is recomputed from a fresh read.
func (m *Monitor) apply(ctx context.Context, name string, decide decideFunc) (engine.Decision, error) {
	unlock := m.locks.Lock(name)
	defer unlock()

	for attempt := 1; attempt <= m.opts.ConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return engine.Decision{}, fmt.Errorf("apply %s: %w", name, err)
		}
		rec, ok, err := m.store.Get(ctx, name)
		if err != nil {
			m.metrics.ObserveStoreError()
			return engine.Decision{}, fmt.Errorf("read %s: %w", name, err)
		}

		var existing *models.EntityStatus
		var expected int64
		if ok {
			existing = &rec
			expected = rec.Version
		}

		decision := decide(existing)
		if !decision.Changed() {
			return decision, nil
		}

		err = m.store.Put(ctx, decision.Record, expected)
		if errors.Is(err, storage.ErrConflict) {
			m.metrics.ObserveConflict()
			m.logger.Debug("record changed underneath, retrying", "entity", name, "attempt", attempt)
			continue
		}
		if err != nil {
			m.metrics.ObserveStoreError()
			return engine.Decision{}, fmt.Errorf("write %s: %w", name, err)
		}

		decision.Record.Version = expected + 1
		m.metrics.ObserveOutcome(decision.Outcome)
		if decision.Notify() {
			m.dispatcher.Dispatch(name, decision.Notification)
		}
		return decision, nil
	}

	m.metrics.ObserveStoreError()
	return engine.Decision{}, fmt.Errorf("write %s: gave up after %d attempts: %w", name, m.opts.ConflictRetries, storage.ErrConflict)
}
