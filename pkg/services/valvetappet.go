package services

import (
	"encoding/json"
	"fmt"
)

// ChannelValveTappet carries the valve opening in percent.
const ChannelValveTappet = "valve-tappet"

const valveTappetSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "valveTappetState"},
		"position": {"type": "integer", "minimum": 0, "maximum": 100}
	},
	"required": ["position"]
}`

// ValveTappet is the plug-in for the read-only ValveTappet service of
// radiator thermostats.
type ValveTappet struct{}

func (ValveTappet) Name() string            { return "ValveTappet" }
func (ValveTappet) Channels() []string      { return []string{ChannelValveTappet} }
func (ValveTappet) Schema() json.RawMessage { return json.RawMessage(valveTappetSchema) }

type valveTappetState struct {
	Position int `json:"position"`
}

func (ValveTappet) HandleState(doc json.RawMessage) ([]Update, error) {
	var state valveTappetState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelValveTappet, Value: state.Position, Unit: UnitPercent}}, nil
}

func (ValveTappet) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	return nil, fmt.Errorf("%w: ValveTappet is read-only", ErrUnsupportedCommand)
}

var _ Service = ValveTappet{}
