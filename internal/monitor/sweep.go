package monitor

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/models"
)

// EntityResult is the outcome of one entity in a sweep pass.
type EntityResult struct {
	Entity  string `json:"entity"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// SweepReport summarises one sweep pass.
type SweepReport struct {
	ID        string         `json:"id"`
	StartedAt int64          `json:"started_at"`
	Results   []EntityResult `json:"results"`
	Failures  int            `json:"failures"`
}

// Sweep evaluates every configured entity against a single "now" captured
// at the start of the pass. Entities are processed concurrently up to
// MaxConcurrency; a failing entity is reported and never stops the others.
func (m *Monitor) Sweep(ctx context.Context) SweepReport {
	report := SweepReport{
		ID:        uuid.NewString(),
		StartedAt: m.Now(),
		Results:   make([]EntityResult, len(m.opts.Entities)),
	}
	threshold := m.Threshold()
	logger := m.logger.With("sweep_id", report.ID)

	sem := make(chan struct{}, m.opts.MaxConcurrency)
	var wg sync.WaitGroup
	for i, name := range m.opts.Entities {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.Results[i] = m.sweepEntity(ctx, sem, name, report.StartedAt, threshold)
		}()
	}
	wg.Wait()

	for _, res := range report.Results {
		if res.Error == "" {
			continue
		}
		report.Failures++
		logger.Error("sweep entity failed", "entity", res.Entity, "error", res.Error)
	}
	m.metrics.ObserveSweep()
	logger.Info("sweep finished", "entities", len(report.Results), "failures", report.Failures)
	return report
}

func (m *Monitor) sweepEntity(ctx context.Context, sem chan struct{}, name string, now, threshold int64) EntityResult {
	result := EntityResult{Entity: name}

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		result.Error = ctx.Err().Error()
		return result
	}

	entityCtx, cancel := context.WithTimeout(ctx, m.opts.EntityTimeout)
	defer cancel()

	decision, err := m.apply(entityCtx, name, func(existing *models.EntityStatus) engine.Decision {
		return engine.OnSweepTick(existing, name, now, threshold)
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Outcome = decision.Outcome.String()
	if decision.Changed() {
		m.logger.Info("sweep transition", "entity", name, "outcome", result.Outcome)
	}
	return result
}
