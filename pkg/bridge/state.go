package bridge

// State is the bridge lifecycle state.
type State uint8

// Bridge states.
const (
	// StateUninitialized is the state before Initialize.
	StateUninitialized State = 0

	// StateConnecting means credentials are being materialized and the
	// controller's public information is being fetched.
	StateConnecting State = 1

	// StatePairing means the pairing driver is running.
	StatePairing State = 2

	// StateFetchingRoomsDevices means the room and device snapshots are
	// being pulled.
	StateFetchingRoomsDevices State = 3

	// StateOnline means handlers are registered and the long-poll loop
	// is running.
	StateOnline State = 4

	// StateOfflineConfigError is terminal: configuration or pairing is
	// wrong and retrying without user action is pointless.
	StateOfflineConfigError State = 5

	// StateOfflineCommError means the controller is unreachable.
	StateOfflineCommError State = 6

	// StateShutdown is terminal after Dispose.
	StateShutdown State = 7
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateConnecting:
		return "CONNECTING"
	case StatePairing:
		return "PAIRING"
	case StateFetchingRoomsDevices:
		return "FETCHING_ROOMS_DEVICES"
	case StateOnline:
		return "ONLINE"
	case StateOfflineConfigError:
		return "OFFLINE_CONFIG_ERROR"
	case StateOfflineCommError:
		return "OFFLINE_COMM_ERROR"
	case StateShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}
