package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes gateway events to an slog.Logger.
// Useful for development when you want to see gateway events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level
// (Warn level for error events).
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("bridge_id", event.BridgeID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.ControllerAddr != "" {
		attrs = append(attrs, slog.String("controller", event.ControllerAddr))
	}
	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}
	if event.Service != "" {
		attrs = append(attrs, slog.String("service", event.Service))
	}

	level := slog.LevelDebug

	switch {
	case event.HTTP != nil:
		attrs = append(attrs,
			slog.String("method", event.HTTP.Method),
			slog.String("path", event.HTTP.Path),
		)
		if event.HTTP.Status != 0 {
			attrs = append(attrs, slog.Int("status", event.HTTP.Status))
		}
		if event.HTTP.Duration != 0 {
			attrs = append(attrs, slog.Duration("duration", event.HTTP.Duration))
		}
	case event.Poll != nil:
		attrs = append(attrs, slog.String("rpc_method", event.Poll.Method))
		if event.Poll.SubscriptionID != "" {
			attrs = append(attrs, slog.String("subscription_id", event.Poll.SubscriptionID))
		}
		if event.Poll.BatchSize != 0 {
			attrs = append(attrs, slog.Int("batch_size", event.Poll.BatchSize))
		}
		if event.Poll.ErrorCode != 0 {
			attrs = append(attrs, slog.Int("error_code", event.Poll.ErrorCode))
		}
	case event.Pairing != nil:
		attrs = append(attrs, slog.String("step", event.Pairing.Step))
		if event.Pairing.Status != 0 {
			attrs = append(attrs, slog.Int("status", event.Pairing.Status))
		}
		if event.Error != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "shc event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
