package status

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/models"
)

type mapReader struct {
	records map[string]models.EntityStatus
	failing map[string]bool
}

func (m mapReader) Get(_ context.Context, name string) (models.EntityStatus, bool, error) {
	if m.failing[name] {
		return models.EntityStatus{}, false, errors.New("store offline")
	}
	rec, ok := m.records[name]
	return rec, ok, nil
}

func TestBuildReport(t *testing.T) {
	reader := mapReader{
		records: map[string]models.EntityStatus{
			"db1":  {Name: "db1", State: models.StateUp, LastSeenAt: 1000, StateChangedAt: 400},
			"web1": {Name: "web1", State: models.StateUp, LastSeenAt: 900, StateChangedAt: 900},
			"new1": {Name: "new1", State: models.StateDown, LastSeenAt: 0, StateChangedAt: 950},
		},
		failing: map[string]bool{"broken": true},
	}

	report := Build(context.Background(), reader, []string{"db1", "web1", "new1", "ghost", "broken"}, 1030, 90)

	want := []DisplayState{DisplayUp, DisplayStale, DisplayDown, DisplayUnknown, DisplayUnknown}
	for i, entry := range report.Entries {
		if entry.State != want[i] {
			t.Errorf("entry %s: expected %s, got %s", entry.Name, want[i], entry.State)
		}
	}
	if report.Summary != (Summary{Up: 1, Down: 1, Stale: 1, Unknown: 2}) {
		t.Fatalf("unexpected summary %+v", report.Summary)
	}
	if report.Entries[4].Error == "" {
		t.Fatalf("expected read error on broken entry")
	}
	if report.Entries[0].SinceLastSeen != 30 || report.Entries[0].SinceChange != 630 {
		t.Fatalf("unexpected ages %+v", report.Entries[0])
	}
	if report.Entries[2].SinceLastSeen != -1 {
		t.Fatalf("expected unknown last seen for never-seen entity, got %d", report.Entries[2].SinceLastSeen)
	}
}

func TestStaleMatchesSweepPredicate(t *testing.T) {
	for delta := int64(85); delta <= 95; delta++ {
		rec := models.EntityStatus{Name: "db1", State: models.StateUp, LastSeenAt: 1000, StateChangedAt: 1000}
		now := 1000 + delta
		stale := Classify(rec, now, 90).State == DisplayStale
		declared := engine.OnSweepTick(&rec, "db1", now, 90).Outcome == engine.OutcomeDeclaredDown
		if stale != declared {
			t.Fatalf("delta %d: stale=%v but sweep declared=%v", delta, stale, declared)
		}
	}
}

func TestRender(t *testing.T) {
	report := Build(context.Background(), mapReader{records: map[string]models.EntityStatus{
		"db1":  {Name: "db1", State: models.StateDown, LastSeenAt: 1000, StateChangedAt: 1100},
		"new1": {Name: "new1", State: models.StateDown, StateChangedAt: 1000},
	}}, []string{"db1", "new1", "ghost"}, 1300, 90)

	text := report.Render()
	for _, want := range []string{
		"0 up, 2 down, 0 stale, 1 unknown",
		"db1: DOWN, last seen 5 minutes 0 seconds ago, state changed 3 minutes 20 seconds ago",
		"new1: DOWN, never seen",
		"ghost: UNKNOWN, no record yet",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in:\n%s", want, text)
		}
	}
}
