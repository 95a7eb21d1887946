package services

import (
	"encoding/json"
	"fmt"
)

// ChannelPowerSwitch carries the on/off state of a switchable device.
const ChannelPowerSwitch = "power-switch"

const powerSwitchSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "powerSwitchState"},
		"switchState": {"type": "string", "enum": ["ON", "OFF"]}
	},
	"required": ["switchState"]
}`

// PowerSwitch is the plug-in for the PowerSwitch service of in-wall
// switches and smart plugs.
type PowerSwitch struct{}

func (PowerSwitch) Name() string            { return "PowerSwitch" }
func (PowerSwitch) Channels() []string      { return []string{ChannelPowerSwitch} }
func (PowerSwitch) Schema() json.RawMessage { return json.RawMessage(powerSwitchSchema) }

type powerSwitchState struct {
	SwitchState string `json:"switchState"`
}

func (PowerSwitch) HandleState(doc json.RawMessage) ([]Update, error) {
	var state powerSwitchState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelPowerSwitch, Value: state.SwitchState}}, nil
}

func (PowerSwitch) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	if channel != ChannelPowerSwitch {
		return nil, fmt.Errorf("%w: channel %q", ErrUnsupportedCommand, channel)
	}
	switch cmd.Action {
	case ActionOn:
		return json.RawMessage(`{"@type":"powerSwitchState","switchState":"ON"}`), nil
	case ActionOff:
		return json.RawMessage(`{"@type":"powerSwitchState","switchState":"OFF"}`), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd.Action)
	}
}

var _ Service = PowerSwitch{}
