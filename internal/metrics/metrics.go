package metrics

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/status"
)

// Collector counts what the monitor did since the process started.
type Collector struct {
	mu                   sync.Mutex
	transitions          map[engine.Outcome]uint64
	storeErrors          uint64
	conflicts            uint64
	notificationsSent    uint64
	notificationFailures uint64
	sweeps               uint64
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{transitions: make(map[engine.Outcome]uint64)}
}

// ObserveOutcome records one applied decision.
func (c *Collector) ObserveOutcome(o engine.Outcome) {
	c.mu.Lock()
	c.transitions[o]++
	c.mu.Unlock()
}

// ObserveStoreError records a failed read or write.
func (c *Collector) ObserveStoreError() {
	c.mu.Lock()
	c.storeErrors++
	c.mu.Unlock()
}

// ObserveConflict records a lost conditional write.
func (c *Collector) ObserveConflict() {
	c.mu.Lock()
	c.conflicts++
	c.mu.Unlock()
}

// ObserveSweep records a completed sweep pass.
func (c *Collector) ObserveSweep() {
	c.mu.Lock()
	c.sweeps++
	c.mu.Unlock()
}

// ObserveNotification records a send attempt.
func (c *Collector) ObserveNotification(err error) {
	c.mu.Lock()
	if err != nil {
		c.notificationFailures++
	} else {
		c.notificationsSent++
	}
	c.mu.Unlock()
}

// Transitions returns the count for one outcome.
func (c *Collector) Transitions(o engine.Outcome) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions[o]
}

// WritePrometheus writes counters and the per-entity gauges of report in
// the Prometheus text exposition format.
func (c *Collector) WritePrometheus(out io.Writer, report status.Report) error {
	w := bufio.NewWriter(out)

	writeEntities(w, report)

	c.mu.Lock()
	fmt.Fprintln(w, "# TYPE cfping_transitions_total counter")
	for _, o := range engine.Outcomes() {
		if o == engine.OutcomeNoOp {
			continue
		}
		fmt.Fprintf(w, "cfping_transitions_total{outcome=%q} %d\n", o.String(), c.transitions[o])
	}
	fmt.Fprintln(w, "# TYPE cfping_store_errors_total counter")
	fmt.Fprintf(w, "cfping_store_errors_total %d\n", c.storeErrors)
	fmt.Fprintln(w, "# TYPE cfping_store_conflicts_total counter")
	fmt.Fprintf(w, "cfping_store_conflicts_total %d\n", c.conflicts)
	fmt.Fprintln(w, "# TYPE cfping_notifications_total counter")
	fmt.Fprintf(w, "cfping_notifications_total{result=\"sent\"} %d\n", c.notificationsSent)
	fmt.Fprintf(w, "cfping_notifications_total{result=\"failed\"} %d\n", c.notificationFailures)
	fmt.Fprintln(w, "# TYPE cfping_sweeps_total counter")
	fmt.Fprintf(w, "cfping_sweeps_total %d\n", c.sweeps)
	c.mu.Unlock()

	return w.Flush()
}

func writeEntities(w *bufio.Writer, report status.Report) {
	fmt.Fprintln(w, "# TYPE cfping_entities gauge")
	fmt.Fprintf(w, "cfping_entities{state=\"up\"} %d\n", report.Summary.Up)
	fmt.Fprintf(w, "cfping_entities{state=\"down\"} %d\n", report.Summary.Down)
	fmt.Fprintf(w, "cfping_entities{state=\"stale\"} %d\n", report.Summary.Stale)
	fmt.Fprintf(w, "cfping_entities{state=\"unknown\"} %d\n", report.Summary.Unknown)

	fmt.Fprintln(w, "# TYPE cfping_entity_up gauge")
	for _, entry := range report.Entries {
		up := 0
		if entry.State == status.DisplayUp {
			up = 1
		}
		fmt.Fprintf(w, "cfping_entity_up{entity=\"%s\"} %d\n", escapeLabel(entry.Name), up)
	}
	fmt.Fprintln(w, "# TYPE cfping_entity_last_seen_seconds gauge")
	for _, entry := range report.Entries {
		if entry.LastSeenAt <= 0 {
			continue
		}
		fmt.Fprintf(w, "cfping_entity_last_seen_seconds{entity=\"%s\"} %d\n", escapeLabel(entry.Name), entry.LastSeenAt)
	}
}

func escapeLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}
