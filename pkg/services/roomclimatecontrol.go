package services

import (
	"encoding/json"
	"fmt"
)

// ChannelSetpointTemperature carries the desired temperature in Celsius.
const ChannelSetpointTemperature = "setpoint-temperature"

const roomClimateControlSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "climateControlState"},
		"setpointTemperature": {"type": "number"},
		"operationMode": {"type": "string"}
	},
	"required": ["setpointTemperature"]
}`

// RoomClimateControl is the plug-in for the RoomClimateControl service of
// room thermostats. Setpoints are written in Celsius; the controller knows
// no other unit.
type RoomClimateControl struct{}

func (RoomClimateControl) Name() string       { return "RoomClimateControl" }
func (RoomClimateControl) Channels() []string { return []string{ChannelSetpointTemperature} }
func (RoomClimateControl) Schema() json.RawMessage {
	return json.RawMessage(roomClimateControlSchema)
}

type roomClimateControlState struct {
	SetpointTemperature float64 `json:"setpointTemperature"`
}

func (RoomClimateControl) HandleState(doc json.RawMessage) ([]Update, error) {
	var state roomClimateControlState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{
		Channel: ChannelSetpointTemperature,
		Value:   state.SetpointTemperature,
		Unit:    UnitCelsius,
	}}, nil
}

func (RoomClimateControl) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	if channel != ChannelSetpointTemperature || cmd.Action != ActionSet {
		return nil, fmt.Errorf("%w: %s on channel %q", ErrUnsupportedCommand, cmd.Action, channel)
	}

	celsius, err := toCelsius(cmd.Number, cmd.NumberUnit)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(struct {
		Type                string  `json:"@type"`
		SetpointTemperature float64 `json:"setpointTemperature"`
	}{"climateControlState", celsius})
	if err != nil {
		return nil, fmt.Errorf("encoding setpoint: %w", err)
	}
	return doc, nil
}

// toCelsius converts a setpoint quantity to Celsius. Quantities in units
// with no defined conversion are rejected.
func toCelsius(value float64, unit Unit) (float64, error) {
	switch unit {
	case UnitCelsius, UnitNone:
		return value, nil
	case UnitFahrenheit:
		return (value - 32) * 5 / 9, nil
	default:
		return 0, fmt.Errorf("%w: cannot convert %s to Celsius", ErrValueOutOfRange, unit)
	}
}

var _ Service = RoomClimateControl{}
