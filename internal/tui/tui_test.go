package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/charleshuang3/cf-ping/internal/status"
)

func newScreen(t *testing.T, width, height int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(width, height)
	t.Cleanup(screen.Fini)
	return screen
}

func rowText(screen tcell.Screen, y int) string {
	width, _ := screen.Size()
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func sampleReport() status.Report {
	return status.Report{
		GeneratedAt:      1_000,
		ThresholdSeconds: 90,
		Entries: []status.Entry{
			{Name: "db1", State: status.DisplayUp, LastSeenAt: 990, StateChangedAt: 400, SinceLastSeen: 10, SinceChange: 600},
			{Name: "web1", State: status.DisplayDown, LastSeenAt: 700, StateChangedAt: 850, SinceLastSeen: 300, SinceChange: 150},
			{Name: "cache", State: status.DisplayUnknown, SinceLastSeen: -1, SinceChange: -1},
		},
		Summary: status.Summary{Up: 1, Down: 1, Unknown: 1},
	}
}

func TestRenderReport(t *testing.T) {
	screen := newScreen(t, 100, 12)
	u := New("localhost:8080")
	u.apply(Update{Report: sampleReport()})
	u.render(screen)

	if got := rowText(screen, 0); !strings.Contains(got, "cfping  localhost:8080") {
		t.Fatalf("unexpected header %q", got)
	}
	if got := rowText(screen, 1); !strings.Contains(got, "1 up  1 down  0 stale  1 unknown  threshold=90s") {
		t.Fatalf("unexpected summary %q", got)
	}
	if got := rowText(screen, 2); !strings.HasPrefix(got, "+- entities") {
		t.Fatalf("unexpected box top %q", got)
	}

	rows := []string{rowText(screen, 3), rowText(screen, 4), rowText(screen, 5)}
	if !strings.Contains(rows[0], "db1") || !strings.Contains(rows[0], "UP") || !strings.Contains(rows[0], "seen 10 seconds ago") {
		t.Fatalf("unexpected db1 row %q", rows[0])
	}
	if !strings.Contains(rows[1], "DOWN") || !strings.Contains(rows[1], "changed 2 minutes 30 seconds ago") {
		t.Fatalf("unexpected web1 row %q", rows[1])
	}
	if !strings.Contains(rows[2], "UNKNOWN") || !strings.Contains(rows[2], "no record yet") {
		t.Fatalf("unexpected cache row %q", rows[2])
	}

	_, _, style, _ := screen.GetContent(1+nameWidth+1, 3)
	if fg, _, _ := style.Decompose(); fg != tcell.ColorGreen {
		t.Fatalf("UP state should be green, got %v", fg)
	}
}

func TestRenderKeepsLastReportOnError(t *testing.T) {
	screen := newScreen(t, 100, 12)
	u := New("localhost:8080")
	u.apply(Update{Report: sampleReport()})
	u.apply(Update{Err: errors.New("connection reset")})
	u.render(screen)

	if got := rowText(screen, 3); !strings.Contains(got, "db1") {
		t.Fatalf("last report should stay visible, got %q", got)
	}
	if got := rowText(screen, 11); !strings.Contains(got, "error: connection reset") {
		t.Fatalf("expected error footer, got %q", got)
	}

	u.apply(Update{Report: sampleReport()})
	u.render(screen)
	if got := rowText(screen, 11); got != "" {
		t.Fatalf("error footer should clear after a good report, got %q", got)
	}
}

func TestRenderWaitingAndTinyScreen(t *testing.T) {
	screen := newScreen(t, 80, 10)
	u := New("example")
	u.render(screen)
	if got := rowText(screen, 1); !strings.Contains(got, "waiting for first report") {
		t.Fatalf("unexpected placeholder %q", got)
	}

	tiny := newScreen(t, 10, 3)
	u.apply(Update{Report: sampleReport()})
	u.render(tiny)
	if got := rowText(tiny, 0); got != "" {
		t.Fatalf("tiny screen should stay blank, got %q", got)
	}
}

func TestRunOnScreenStopsWhenUpdatesClose(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	updates := make(chan Update, 1)
	updates <- Update{Report: sampleReport()}
	close(updates)

	done := make(chan error, 1)
	go func() { done <- New("example").RunOnScreen(context.Background(), screen, updates) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after updates closed")
	}
}

func TestRunOnScreenStopsOnCancel(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New("example").RunOnScreen(ctx, screen, make(chan Update)) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}
