package events

import (
	"context"
	"log/slog"

	"github.com/ironsheep/desk-mode-mcp/internal/mode"
)

// LogConsumer writes each transition to a structured log.
type LogConsumer struct {
	Logger *slog.Logger
}

// OnTransition logs the transition at info level.
func (l LogConsumer) OnTransition(ctx context.Context, t mode.Transition) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "MODE: "+string(t.To.Mode),
		"object", t.Label,
		"from", t.From.String(),
		"mode_changed", t.ModeChanged(),
		"id", t.ID.String(),
	)
	return nil
}
