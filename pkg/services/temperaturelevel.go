package services

import (
	"encoding/json"
	"fmt"
)

// ChannelTemperature carries a measured temperature in Celsius.
const ChannelTemperature = "temperature"

const temperatureLevelSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "temperatureLevelState"},
		"temperature": {"type": "number"}
	},
	"required": ["temperature"]
}`

// TemperatureLevel is the plug-in for the read-only TemperatureLevel
// service of climate sensors and thermostats.
type TemperatureLevel struct{}

func (TemperatureLevel) Name() string            { return "TemperatureLevel" }
func (TemperatureLevel) Channels() []string      { return []string{ChannelTemperature} }
func (TemperatureLevel) Schema() json.RawMessage { return json.RawMessage(temperatureLevelSchema) }

type temperatureLevelState struct {
	Temperature float64 `json:"temperature"`
}

func (TemperatureLevel) HandleState(doc json.RawMessage) ([]Update, error) {
	var state temperatureLevelState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelTemperature, Value: state.Temperature, Unit: UnitCelsius}}, nil
}

func (TemperatureLevel) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	return nil, fmt.Errorf("%w: TemperatureLevel is read-only", ErrUnsupportedCommand)
}

var _ Service = TemperatureLevel{}
