package log

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter writes gateway events to a zerolog.Logger. The daemon uses
// it for console output; FileLogger remains the machine-readable capture.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new ZerologAdapter that writes to the given logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log writes the event at debug level (warn level for error events).
func (a *ZerologAdapter) Log(event Event) {
	ev := a.logger.Debug()
	if event.Error != nil {
		ev = a.logger.Warn()
	}

	ev = ev.
		Str("bridge_id", event.BridgeID).
		Str("direction", event.Direction.String()).
		Str("category", event.Category.String())

	if event.ControllerAddr != "" {
		ev = ev.Str("controller", event.ControllerAddr)
	}
	if event.DeviceID != "" {
		ev = ev.Str("device_id", event.DeviceID)
	}
	if event.Service != "" {
		ev = ev.Str("service", event.Service)
	}

	switch {
	case event.HTTP != nil:
		ev = ev.Str("method", event.HTTP.Method).Str("path", event.HTTP.Path)
		if event.HTTP.Status != 0 {
			ev = ev.Int("status", event.HTTP.Status)
		}
		if event.HTTP.Duration != 0 {
			ev = ev.Dur("duration", event.HTTP.Duration)
		}
	case event.Poll != nil:
		ev = ev.Str("rpc_method", event.Poll.Method)
		if event.Poll.SubscriptionID != "" {
			ev = ev.Str("subscription_id", event.Poll.SubscriptionID)
		}
		if event.Poll.BatchSize != 0 {
			ev = ev.Int("batch_size", event.Poll.BatchSize)
		}
		if event.Poll.ErrorCode != 0 {
			ev = ev.Int("error_code", event.Poll.ErrorCode)
		}
	case event.Pairing != nil:
		ev = ev.Str("step", event.Pairing.Step)
		if event.Pairing.Status != 0 {
			ev = ev.Int("status", event.Pairing.Status)
		}
		if event.Error != nil {
			ev = ev.Str("error_msg", event.Error.Message)
		}
	case event.StateChange != nil:
		ev = ev.
			Str("entity", event.StateChange.Entity.String()).
			Str("old_state", event.StateChange.OldState).
			Str("new_state", event.StateChange.NewState)
		if event.StateChange.Reason != "" {
			ev = ev.Str("reason", event.StateChange.Reason)
		}
	case event.Error != nil:
		ev = ev.Str("error_msg", event.Error.Message)
		if event.Error.Context != "" {
			ev = ev.Str("error_context", event.Error.Context)
		}
	}

	ev.Msg("shc event")
}

// Compile-time interface satisfaction check.
var _ Logger = (*ZerologAdapter)(nil)
