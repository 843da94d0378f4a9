package engine

import (
	"strings"
	"testing"

	"github.com/charleshuang3/cf-ping/internal/models"
)

func up(lastSeen, changed int64) *models.EntityStatus {
	return &models.EntityStatus{Name: "db1", State: models.StateUp, LastSeenAt: lastSeen, StateChangedAt: changed, Version: 3}
}

func down(lastSeen, changed int64) *models.EntityStatus {
	return &models.EntityStatus{Name: "db1", State: models.StateDown, LastSeenAt: lastSeen, StateChangedAt: changed, Version: 3}
}

func TestDecisionTable(t *testing.T) {
	const threshold = 90

	tests := []struct {
		name       string
		existing   *models.EntityStatus
		ping       bool
		now        int64
		outcome    Outcome
		want       models.EntityStatus
		wantNotify string
	}{
		{
			name:       "ping absent",
			ping:       true,
			now:        1000,
			outcome:    OutcomeCreated,
			want:       models.EntityStatus{Name: "db1", State: models.StateUp, LastSeenAt: 1000, StateChangedAt: 1000},
			wantNotify: "first contact",
		},
		{
			name:       "ping down",
			existing:   down(1000, 1100),
			ping:       true,
			now:        1300,
			outcome:    OutcomeRecovered,
			want:       models.EntityStatus{Name: "db1", State: models.StateUp, LastSeenAt: 1300, StateChangedAt: 1300, Version: 3},
			wantNotify: "recovered",
		},
		{
			name:     "ping up",
			existing: up(1000, 500),
			ping:     true,
			now:      1030,
			outcome:  OutcomeRefreshed,
			want:     models.EntityStatus{Name: "db1", State: models.StateUp, LastSeenAt: 1030, StateChangedAt: 500, Version: 3},
		},
		{
			name:       "tick absent",
			now:        2000,
			outcome:    OutcomeOnboardedDown,
			want:       models.EntityStatus{Name: "db1", State: models.StateDown, LastSeenAt: 0, StateChangedAt: 2000},
			wantNotify: "never reported",
		},
		{
			name:       "tick up silent",
			existing:   up(1000, 1000),
			now:        1100,
			outcome:    OutcomeDeclaredDown,
			want:       models.EntityStatus{Name: "db1", State: models.StateDown, LastSeenAt: 1000, StateChangedAt: 1100, Version: 3},
			wantNotify: "silent for more than 90s",
		},
		{
			name:     "tick up fresh",
			existing: up(1000, 1000),
			now:      1050,
			outcome:  OutcomeNoOp,
			want:     *up(1000, 1000),
		},
		{
			name:     "tick down",
			existing: down(1000, 1100),
			now:      5000,
			outcome:  OutcomeNoOp,
			want:     *down(1000, 1100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Decision
			if tt.ping {
				got = OnPing(tt.existing, "db1", tt.now)
			} else {
				got = OnSweepTick(tt.existing, "db1", tt.now, threshold)
			}
			if got.Outcome != tt.outcome {
				t.Fatalf("expected outcome %s, got %s", tt.outcome, got.Outcome)
			}
			if got.Record != tt.want {
				t.Fatalf("expected record %+v, got %+v", tt.want, got.Record)
			}
			if tt.wantNotify == "" && got.Notify() {
				t.Fatalf("expected no notification, got %q", got.Notification)
			}
			if tt.wantNotify != "" && !strings.Contains(got.Notification, tt.wantNotify) {
				t.Fatalf("expected notification containing %q, got %q", tt.wantNotify, got.Notification)
			}
			if got.Changed() != (tt.outcome != OutcomeNoOp) {
				t.Fatalf("unexpected Changed() for %s", tt.outcome)
			}
		})
	}
}

func TestScenarioLifecycle(t *testing.T) {
	const threshold = 90

	// A: first contact.
	d := OnPing(nil, "db1", 1000)
	if d.Outcome != OutcomeCreated || d.Record.State != models.StateUp || d.Record.LastSeenAt != 1000 || d.Record.StateChangedAt != 1000 {
		t.Fatalf("scenario A: unexpected decision %+v", d)
	}
	rec := d.Record

	// B: fresh, then silent.
	if d := OnSweepTick(&rec, "db1", 1050, threshold); d.Changed() {
		t.Fatalf("scenario B: expected no change at 1050, got %s", d.Outcome)
	}
	d = OnSweepTick(&rec, "db1", 1100, threshold)
	if d.Outcome != OutcomeDeclaredDown {
		t.Fatalf("scenario B: expected declared_down, got %s", d.Outcome)
	}
	if d.Record.LastSeenAt != 1000 || d.Record.StateChangedAt != 1100 || d.Record.State != models.StateDown {
		t.Fatalf("scenario B: unexpected record %+v", d.Record)
	}
	if !strings.Contains(d.Notification, "more than 90s") {
		t.Fatalf("scenario B: unexpected notification %q", d.Notification)
	}
	rec = d.Record

	// C: recovery reports the gap since the last sighting.
	d = OnPing(&rec, "db1", 1300)
	if d.Outcome != OutcomeRecovered {
		t.Fatalf("scenario C: expected recovered, got %s", d.Outcome)
	}
	if d.Downtime != 300 {
		t.Fatalf("scenario C: expected downtime 300, got %d", d.Downtime)
	}
	if !strings.Contains(d.Notification, "5 minutes 0 seconds") {
		t.Fatalf("scenario C: unexpected notification %q", d.Notification)
	}
	if d.Record.State != models.StateUp || d.Record.LastSeenAt != 1300 || d.Record.StateChangedAt != 1300 {
		t.Fatalf("scenario C: unexpected record %+v", d.Record)
	}

	// D: configured but never seen.
	d = OnSweepTick(nil, "new1", 2000, threshold)
	if d.Outcome != OutcomeOnboardedDown || d.Record.LastSeenAt != 0 || d.Record.StateChangedAt != 2000 || d.Record.Name != "new1" {
		t.Fatalf("scenario D: unexpected decision %+v", d)
	}
	if !strings.Contains(d.Notification, "never reported") {
		t.Fatalf("scenario D: unexpected notification %q", d.Notification)
	}
}

func TestSilentBoundaryIsStrict(t *testing.T) {
	rec := *up(1000, 1000)
	if Silent(rec, 1090, 90) {
		t.Fatalf("expected exactly threshold to be fresh")
	}
	if !Silent(rec, 1091, 90) {
		t.Fatalf("expected threshold+1 to be silent")
	}
	if Silent(*down(1000, 1000), 9999, 90) {
		t.Fatalf("DOWN records are never silent")
	}
}

func TestOnPingClockSkew(t *testing.T) {
	d := OnPing(up(1000, 900), "db1", 990)
	if d.Record.LastSeenAt != 1000 {
		t.Fatalf("expected last_seen_at to stay at 1000, got %d", d.Record.LastSeenAt)
	}

	d = OnPing(down(1000, 1100), "db1", 990)
	if d.Outcome != OutcomeRecovered {
		t.Fatalf("expected recovered, got %s", d.Outcome)
	}
	if d.Downtime != 0 {
		t.Fatalf("expected clamped downtime 0, got %d", d.Downtime)
	}
}

func TestOnPingUnknownStateRecovers(t *testing.T) {
	rec := &models.EntityStatus{Name: "db1", State: "", LastSeenAt: 10, StateChangedAt: 10}
	if d := OnPing(rec, "db1", 20); d.Outcome != OutcomeRecovered {
		t.Fatalf("expected recovered, got %s", d.Outcome)
	}
	if d := OnSweepTick(rec, "db1", 2000, 90); d.Changed() {
		t.Fatalf("expected no_op for unknown state, got %s", d.Outcome)
	}
}

func TestOutcomeString(t *testing.T) {
	for _, o := range Outcomes() {
		if o.String() == "unknown" {
			t.Fatalf("outcome %d has no name", int(o))
		}
	}
	if Outcome(99).String() != "unknown" {
		t.Fatalf("expected unknown for out-of-range outcome")
	}
}

func TestHumanDuration(t *testing.T) {
	tests := map[int64]string{
		-5:    "0 seconds",
		0:     "0 seconds",
		1:     "1 second",
		45:    "45 seconds",
		60:    "1 minute 0 seconds",
		300:   "5 minutes 0 seconds",
		3661:  "1 hour 1 minute 1 second",
		90061: "1 day 1 hour 1 minute 1 second",
		86400: "1 day 0 hours 0 minutes 0 seconds",
	}
	for in, want := range tests {
		if got := HumanDuration(in); got != want {
			t.Errorf("HumanDuration(%d) = %q, want %q", in, got, want)
		}
	}
}
