package monitor

import (
	"context"
	"fmt"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/models"
)

// PingResult tells the caller what an accepted ping changed.
type PingResult struct {
	Entity   string
	Outcome  engine.Outcome
	Downtime int64
	Record   models.EntityStatus
}

// Created reports whether the ping created the record.
func (r PingResult) Created() bool {
	return r.Outcome == engine.OutcomeCreated
}

// Ping records a liveness report for name at the current wall-clock time.
// Names outside the allow-list are rejected before the store is touched.
func (m *Monitor) Ping(ctx context.Context, name string) (PingResult, error) {
	if !m.Allowed(name) {
		return PingResult{}, fmt.Errorf("ping %q: %w", name, ErrUnknownEntity)
	}

	// The clock is read under the entity lock so a sweep that ran while this
	// ping waited can never be timestamped after the recovery that ends it.
	decision, err := m.apply(ctx, name, func(existing *models.EntityStatus) engine.Decision {
		return engine.OnPing(existing, name, m.Now())
	})
	if err != nil {
		m.logger.Error("ping failed", "entity", name, "error", err)
		return PingResult{}, err
	}

	m.logger.Info("ping accepted", "entity", name, "outcome", decision.Outcome.String())
	return PingResult{
		Entity:   name,
		Outcome:  decision.Outcome,
		Downtime: decision.Downtime,
		Record:   decision.Record,
	}, nil
}
