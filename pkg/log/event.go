package log

import (
	"time"
)

// Event represents a gateway event captured at any stage of the bridge
// lifecycle. CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// BridgeID uniquely identifies the bridge run (UUID).
	BridgeID string `cbor:"2,keyasint"`

	// Direction indicates message flow relative to the gateway.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// ControllerAddr is the controller address (IP).
	ControllerAddr string `cbor:"5,keyasint,omitempty"`

	// DeviceID is the controller-side device identifier, when relevant.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// Service is the controller-side service name, when relevant.
	Service string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	HTTP        *HTTPEvent        `cbor:"8,keyasint,omitempty"`  // request/response exchanges
	Poll        *PollEvent        `cbor:"9,keyasint,omitempty"`  // subscription and long-poll activity
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // bridge or driver state transitions
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // errors at any stage
	Pairing     *PairingEvent     `cbor:"12,keyasint,omitempty"` // pairing flow steps
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates data received from the controller.
	DirectionIn Direction = 0
	// DirectionOut indicates data sent to the controller.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryHTTP is a plain request/response exchange.
	CategoryHTTP Category = 0
	// CategoryPairing is a pairing flow step.
	CategoryPairing Category = 1
	// CategoryLongPoll is subscription or long-poll activity.
	CategoryLongPoll Category = 2
	// CategoryDispatch is an inbound update delivered to a device handler.
	CategoryDispatch Category = 3
	// CategoryState is a bridge or driver state transition.
	CategoryState Category = 4
	// CategoryError is an error event.
	CategoryError Category = 5
	// CategoryDiscovery is mDNS controller discovery activity.
	CategoryDiscovery Category = 6
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryHTTP:
		return "HTTP"
	case CategoryPairing:
		return "PAIRING"
	case CategoryLongPoll:
		return "LONGPOLL"
	case CategoryDispatch:
		return "DISPATCH"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryDiscovery:
		return "DISCOVERY"
	default:
		return "UNKNOWN"
	}
}

// HTTPEvent describes one HTTP exchange with the controller.
type HTTPEvent struct {
	// Method is the HTTP method.
	Method string `cbor:"1,keyasint"`

	// Path is the request path (no host).
	Path string `cbor:"2,keyasint"`

	// Status is the HTTP response status, zero if the request failed
	// before a response was received.
	Status int `cbor:"3,keyasint,omitempty"`

	// Duration is the wall time of the exchange.
	Duration time.Duration `cbor:"4,keyasint,omitempty"`

	// BodySize is the response body size in bytes.
	BodySize int `cbor:"5,keyasint,omitempty"`
}

// PollEvent describes subscription and long-poll activity.
type PollEvent struct {
	// Method is the JSON-RPC method (RE/subscribe, RE/longPoll, RE/unsubscribe).
	Method string `cbor:"1,keyasint"`

	// SubscriptionID is the active subscription id, if any.
	SubscriptionID string `cbor:"2,keyasint,omitempty"`

	// BatchSize is the number of notifications in a poll response.
	BatchSize int `cbor:"3,keyasint,omitempty"`

	// ErrorCode is the JSON-RPC error code when the response carried one.
	ErrorCode int `cbor:"4,keyasint,omitempty"`
}

// PairingEvent describes one step of the pairing flow.
type PairingEvent struct {
	// Step names the flow step (probe, enroll, complete).
	Step string `cbor:"1,keyasint"`

	// Status is the HTTP status of the enrollment request, when relevant.
	Status int `cbor:"2,keyasint,omitempty"`
}

// StateChangeEvent describes a state transition.
type StateChangeEvent struct {
	// Entity is what changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state name.
	OldState string `cbor:"2,keyasint"`

	// NewState is the new state name.
	NewState string `cbor:"3,keyasint"`

	// Reason describes why, if known.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity identifies what kind of entity changed state.
type StateEntity uint8

const (
	// EntityBridge is the bridge lifecycle state machine.
	EntityBridge StateEntity = 0
	// EntityPoller is the long-poll driver state machine.
	EntityPoller StateEntity = 1
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case EntityBridge:
		return "BRIDGE"
	case EntityPoller:
		return "POLLER"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData describes an error captured at any stage.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes where the error occurred.
	Context string `cbor:"2,keyasint,omitempty"`
}
