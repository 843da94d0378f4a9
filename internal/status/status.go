// Package status builds the operator-facing view of every configured entity.
package status

import (
	"context"
	"fmt"
	"strings"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/models"
)

// DisplayState is the state shown to operators.
type DisplayState string

const (
	DisplayUp      DisplayState = "UP"
	DisplayDown    DisplayState = "DOWN"
	DisplayStale   DisplayState = "STALE"
	DisplayUnknown DisplayState = "UNKNOWN"
)

// Reader is the part of the record store the report needs.
type Reader interface {
	Get(ctx context.Context, name string) (models.EntityStatus, bool, error)
}

// Entry describes one entity at report time.
type Entry struct {
	Name           string       `json:"name"`
	State          DisplayState `json:"state"`
	LastSeenAt     int64        `json:"last_seen_at"`
	StateChangedAt int64        `json:"state_changed_at"`
	// SinceLastSeen and SinceChange are ages in seconds, -1 when unknown.
	SinceLastSeen int64  `json:"since_last_seen"`
	SinceChange   int64  `json:"since_change"`
	Error         string `json:"error,omitempty"`
}

// Summary counts entries per display state.
type Summary struct {
	Up      int `json:"up"`
	Down    int `json:"down"`
	Stale   int `json:"stale"`
	Unknown int `json:"unknown"`
}

// Report is the status of all configured entities at one instant.
type Report struct {
	GeneratedAt      int64   `json:"generated_at"`
	ThresholdSeconds int64   `json:"threshold_seconds"`
	Entries          []Entry `json:"entries"`
	Summary          Summary `json:"summary"`
}

// Build reads every configured entity and classifies it. A failed read is
// reported on its entry and does not fail the whole report.
func Build(ctx context.Context, reader Reader, names []string, now, threshold int64) Report {
	report := Report{
		GeneratedAt:      now,
		ThresholdSeconds: threshold,
		Entries:          make([]Entry, 0, len(names)),
	}
	for _, name := range names {
		entry := Entry{Name: name, State: DisplayUnknown, SinceLastSeen: -1, SinceChange: -1}
		rec, ok, err := reader.Get(ctx, name)
		switch {
		case err != nil:
			entry.Error = err.Error()
		case ok:
			entry = Classify(rec, now, threshold)
		}
		report.Entries = append(report.Entries, entry)
		report.Summary.add(entry.State)
	}
	return report
}

// Classify turns a stored record into a display entry. STALE uses the same
// predicate as the sweep, so an entity shows STALE exactly when the next
// sweep would declare it down.
func Classify(rec models.EntityStatus, now, threshold int64) Entry {
	entry := Entry{
		Name:           rec.Name,
		LastSeenAt:     rec.LastSeenAt,
		StateChangedAt: rec.StateChangedAt,
		SinceLastSeen:  -1,
		SinceChange:    max(now-rec.StateChangedAt, 0),
	}
	if rec.LastSeenAt > 0 {
		entry.SinceLastSeen = max(now-rec.LastSeenAt, 0)
	}

	switch {
	case engine.Silent(rec, now, threshold):
		entry.State = DisplayStale
	case rec.State == models.StateUp:
		entry.State = DisplayUp
	case rec.State == models.StateDown:
		entry.State = DisplayDown
	default:
		entry.State = DisplayUnknown
	}
	return entry
}

func (s *Summary) add(state DisplayState) {
	switch state {
	case DisplayUp:
		s.Up++
	case DisplayDown:
		s.Down++
	case DisplayStale:
		s.Stale++
	default:
		s.Unknown++
	}
}

// Render formats the report as plain text, one line per entity.
func (r Report) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d up, %d down, %d stale, %d unknown\n",
		r.Summary.Up, r.Summary.Down, r.Summary.Stale, r.Summary.Unknown)
	for _, entry := range r.Entries {
		b.WriteString(entry.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// Line renders a single entry.
func (e Entry) Line() string {
	if e.Error != "" {
		return fmt.Sprintf("%s: %s (error: %s)", e.Name, e.State, e.Error)
	}
	if e.State == DisplayUnknown && e.SinceChange < 0 {
		return fmt.Sprintf("%s: %s, no record yet", e.Name, e.State)
	}
	seen := "never seen"
	if e.SinceLastSeen >= 0 {
		seen = "last seen " + engine.HumanDuration(e.SinceLastSeen) + " ago"
	}
	return fmt.Sprintf("%s: %s, %s, state changed %s ago",
		e.Name, e.State, seen, engine.HumanDuration(e.SinceChange))
}
