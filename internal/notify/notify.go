// Package notify delivers transition messages to humans.
package notify

import (
	"context"
	"log/slog"
)

// Sender hides the destination so the monitor does not care where text goes.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// LogSender writes messages to the structured log. It is the fallback when
// no chat channel is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the message and never fails.
func (s LogSender) Send(_ context.Context, message string) error {
	s.Logger.Info("notification", "text", message)
	return nil
}
