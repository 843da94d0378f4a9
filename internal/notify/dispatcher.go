package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs sends in the background and keeps track of them so that
// shutdown can wait for pending notifications instead of dropping them.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	onDone  func(err error)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithResultHook registers fn to be called after every send attempt.
func WithResultHook(fn func(err error)) Option {
	return func(d *Dispatcher) { d.onDone = fn }
}

// NewDispatcher creates a dispatcher; timeout bounds every single send.
func NewDispatcher(sender Sender, logger *slog.Logger, timeout time.Duration, opts ...Option) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{sender: sender, logger: logger, timeout: timeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch registers the send before returning and performs it in the
// background. Once Drain has begun, sends run inline so nothing is lost.
func (d *Dispatcher) Dispatch(entity, message string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.send(entity, message)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.send(entity, message)
	}()
}

// Drain stops accepting background work and waits for pending sends or ctx.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) send(entity, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := d.sender.Send(ctx, message)
	if err != nil {
		d.logger.Warn("notification failed", "entity", entity, "error", err)
	} else {
		d.logger.Debug("notification sent", "entity", entity)
	}
	if d.onDone != nil {
		d.onDone(err)
	}
}
