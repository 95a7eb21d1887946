package longpoll

// State is the long-poll driver state.
type State uint8

// Driver states.
const (
	// StateNoSubscription means no valid subscription id exists; the next
	// step is an RE/subscribe.
	StateNoSubscription State = 0

	// StatePolling means a subscription is active and polls are issued
	// back to back.
	StatePolling State = 1

	// StateBackoff means the driver waits out a fixed delay after a
	// failure before returning to StateNoSubscription.
	StateBackoff State = 2

	// StateTerminated means the driver shut down and will not poll again.
	StateTerminated State = 3
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoSubscription:
		return "NO_SUBSCRIPTION"
	case StatePolling:
		return "POLLING"
	case StateBackoff:
		return "BACKOFF"
	case StateTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}
