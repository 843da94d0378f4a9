// Package tui draws live status reports in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/charleshuang3/cf-ping/internal/engine"
	"github.com/charleshuang3/cf-ping/internal/status"
)

const (
	nameWidth  = 16
	stateWidth = 8
)

// Update carries either a fresh report or the error that prevented one.
type Update struct {
	Report status.Report
	Err    error
}

// UI renders status reports received on a channel.
type UI struct {
	source string

	last    status.Report
	hasLast bool
	lastErr error
}

// New returns a UI labelled with the address it watches.
func New(source string) *UI {
	return &UI{source: source}
}

// Run opens the terminal and blocks until the context is cancelled, the
// update channel closes or the user quits.
func (u *UI) Run(ctx context.Context, updates <-chan Update) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	return u.RunOnScreen(ctx, screen, updates)
}

// RunOnScreen is Run against a caller-supplied screen.
func (u *UI) RunOnScreen(ctx context.Context, screen tcell.Screen, updates <-chan Update) error {
	if err := screen.Init(); err != nil {
		return err
	}
	screen.HideCursor()
	defer screen.Fini()

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	u.render(screen)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Key() == tcell.KeyEscape || ev.Rune() == 'q' {
					return nil
				}
			case *tcell.EventResize:
				screen.Sync()
				u.render(screen)
			}
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			u.apply(upd)
			u.render(screen)
		}
	}
}

func (u *UI) apply(upd Update) {
	if upd.Err != nil {
		u.lastErr = upd.Err
		return
	}
	u.last = upd.Report
	u.hasLast = true
	u.lastErr = nil
}

func (u *UI) render(screen tcell.Screen) {
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 4 {
		screen.Show()
		return
	}

	header := fmt.Sprintf(" cfping  %s  (q to quit)", u.source)
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))

	if !u.hasLast {
		drawText(screen, 0, 1, width, " waiting for first report...", tcell.StyleDefault.Foreground(tcell.ColorGray))
		u.drawError(screen, width, height)
		screen.Show()
		return
	}

	drawText(screen, 0, 1, width, summaryLine(u.last), tcell.StyleDefault.Foreground(tcell.ColorGray))

	boxHeight := min(len(u.last.Entries)+2, height-3)
	if boxHeight >= 3 {
		drawBox(screen, 0, 2, width, boxHeight)
		drawText(screen, 2, 2, width-4, " entities ", tcell.StyleDefault.Bold(true))
		for i := 0; i < len(u.last.Entries) && i < boxHeight-2; i++ {
			drawEntry(screen, 1, 3+i, width-2, u.last.Entries[i])
		}
	}

	u.drawError(screen, width, height)
	screen.Show()
}

func (u *UI) drawError(screen tcell.Screen, width, height int) {
	if u.lastErr == nil {
		return
	}
	drawText(screen, 0, height-1, width, " error: "+u.lastErr.Error(), tcell.StyleDefault.Foreground(tcell.ColorRed))
}

func summaryLine(report status.Report) string {
	generated := time.Unix(report.GeneratedAt, 0).Format("2006-01-02 15:04:05")
	return fmt.Sprintf(" %s  %d up  %d down  %d stale  %d unknown  threshold=%ds",
		generated, report.Summary.Up, report.Summary.Down, report.Summary.Stale,
		report.Summary.Unknown, report.ThresholdSeconds)
}

func drawEntry(screen tcell.Screen, x, y, width int, entry status.Entry) {
	name := padOrTrim(entry.Name, min(nameWidth, width))
	drawText(screen, x, y, width, name, tcell.StyleDefault)

	col := x + len([]rune(name)) + 1
	if col >= x+width {
		return
	}
	drawText(screen, col, y, min(stateWidth, x+width-col), padOrTrim(string(entry.State), stateWidth), stateStyle(entry.State))

	col += stateWidth + 1
	if col >= x+width {
		return
	}
	drawText(screen, col, y, x+width-col, entryDetail(entry), tcell.StyleDefault)
}

func entryDetail(entry status.Entry) string {
	switch {
	case entry.Error != "":
		return "error: " + entry.Error
	case entry.State == status.DisplayUnknown && entry.SinceChange < 0:
		return "no record yet"
	case entry.SinceLastSeen < 0:
		return "never seen, changed " + engine.HumanDuration(entry.SinceChange) + " ago"
	default:
		return "seen " + engine.HumanDuration(entry.SinceLastSeen) + " ago, changed " +
			engine.HumanDuration(entry.SinceChange) + " ago"
	}
}

func stateStyle(state status.DisplayState) tcell.Style {
	switch state {
	case status.DisplayUp:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case status.DisplayStale:
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case status.DisplayDown:
		return tcell.StyleDefault.Foreground(tcell.ColorRed)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	screen.SetContent(x, y, '+', nil, tcell.StyleDefault)
	screen.SetContent(right, y, '+', nil, tcell.StyleDefault)
	screen.SetContent(x, bottom, '+', nil, tcell.StyleDefault)
	screen.SetContent(right, bottom, '+', nil, tcell.StyleDefault)
	for col := x + 1; col < right; col++ {
		screen.SetContent(col, y, '-', nil, tcell.StyleDefault)
		screen.SetContent(col, bottom, '-', nil, tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		screen.SetContent(x, row, '|', nil, tcell.StyleDefault)
		screen.SetContent(right, row, '|', nil, tcell.StyleDefault)
	}
}

// drawText writes text clipped to width without padding the rest.
func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= x+width {
			return
		}
		screen.SetContent(col, y, r, nil, style)
		col++
	}
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	return value + strings.Repeat(" ", width-len(runes))
}
