package log

// Logger is the interface applications implement to receive gateway events.
// Pass nil or NoopLogger to disable logging.
type Logger interface {
	// Log records a gateway event. Implementations must be thread-safe.
	// The event should be processed quickly or queued; blocking affects
	// the long-poll loop.
	Log(event Event)
}

// NoopLogger discards all events. Use when logging is disabled.
// NoopLogger is safe for concurrent use and usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Compile-time interface satisfaction check.
var _ Logger = NoopLogger{}

// OrNoop returns l if non-nil, NoopLogger otherwise. Callers use it to
// avoid nil checks on every Log call.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
