package services

import (
	"encoding/json"
	"errors"
)

// Plug-in errors.
var (
	// ErrDecode indicates a state document failed to parse or did not
	// match the service's schema. The offending document is dropped.
	ErrDecode = errors.New("state document decode failure")

	// ErrUnsupportedCommand indicates the plug-in cannot translate the
	// command for the given channel.
	ErrUnsupportedCommand = errors.New("unsupported command")

	// ErrValueOutOfRange indicates the command carried a value the
	// service cannot express.
	ErrValueOutOfRange = errors.New("value out of range")
)

// Action is the kind of an abstract channel command.
type Action string

// Channel command actions.
const (
	ActionOn   Action = "ON"
	ActionOff  Action = "OFF"
	ActionUp   Action = "UP"
	ActionDown Action = "DOWN"
	ActionStop Action = "STOP"
	ActionPlay Action = "PLAY"
	ActionSet  Action = "SET"
)

// Unit qualifies the numeric value of a SET command.
type Unit string

// Units understood by the plug-ins.
const (
	UnitNone       Unit = ""
	UnitCelsius    Unit = "°C"
	UnitFahrenheit Unit = "°F"
	UnitPercent    Unit = "%"
	UnitPPM        Unit = "ppm"
)

// Command is an abstract channel command entering a plug-in from the
// framework side. Number and NumberUnit are meaningful only for ActionSet.
type Command struct {
	Action     Action
	Number     float64
	NumberUnit Unit
}

// On returns an ON command.
func On() Command { return Command{Action: ActionOn} }

// Off returns an OFF command.
func Off() Command { return Command{Action: ActionOff} }

// Up returns an UP command.
func Up() Command { return Command{Action: ActionUp} }

// Down returns a DOWN command.
func Down() Command { return Command{Action: ActionDown} }

// Stop returns a STOP command.
func Stop() Command { return Command{Action: ActionStop} }

// Play returns a PLAY command.
func Play() Command { return Command{Action: ActionPlay} }

// Set returns a SET command carrying a number and its unit.
func Set(value float64, unit Unit) Command {
	return Command{Action: ActionSet, Number: value, NumberUnit: unit}
}

// Update is one normalized channel update produced from a state document.
type Update struct {
	// Channel is the abstract channel id.
	Channel string

	// Value is the normalized value: string, float64, int or bool
	// depending on the channel.
	Value any

	// Unit is the value's unit, empty when dimensionless.
	Unit Unit
}

// Service is a service plug-in. Implementations are stateless; per-device
// state lives in the Instance that wraps them.
type Service interface {
	// Name is the controller-side service name, used in URLs and in
	// notification ids.
	Name() string

	// Channels lists the abstract channels this plug-in feeds or consumes.
	Channels() []string

	// Schema is the JSON schema of the service's state document.
	Schema() json.RawMessage

	// HandleState projects a state document to channel updates. The
	// document has already passed schema validation.
	HandleState(doc json.RawMessage) ([]Update, error)

	// EncodeCommand translates an outbound channel command into a partial
	// state document to PUT. Returns ErrUnsupportedCommand or
	// ErrValueOutOfRange when the translation is impossible.
	EncodeCommand(channel string, cmd Command) (json.RawMessage, error)
}
