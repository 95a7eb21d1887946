package services

import (
	"encoding/json"
	"fmt"
)

// Channels fed by the AirQualityLevel service of Twinguard devices.
const (
	ChannelHumidity          = "humidity"
	ChannelPurity            = "purity"
	ChannelTemperatureRating = "temperature-rating"
	ChannelHumidityRating    = "humidity-rating"
	ChannelPurityRating      = "purity-rating"
	ChannelAirDescription    = "air-description"
	ChannelCombinedRating    = "combined-rating"
)

const airQualityLevelSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "airQualityLevelState"},
		"temperature": {"type": "number"},
		"temperatureRating": {"type": "string"},
		"humidity": {"type": "number"},
		"humidityRating": {"type": "string"},
		"purity": {"type": "number"},
		"purityRating": {"type": "string"},
		"description": {"type": "string"},
		"combinedRating": {"type": "string"}
	},
	"required": ["temperature", "humidity", "purity"]
}`

// AirQualityLevel is the plug-in for the combined air quality service of
// Twinguard smoke detectors: temperature, humidity and air purity with the
// controller's ratings.
type AirQualityLevel struct{}

func (AirQualityLevel) Name() string { return "AirQualityLevel" }

func (AirQualityLevel) Channels() []string {
	return []string{
		ChannelTemperature,
		ChannelHumidity,
		ChannelPurity,
		ChannelTemperatureRating,
		ChannelHumidityRating,
		ChannelPurityRating,
		ChannelAirDescription,
		ChannelCombinedRating,
	}
}

func (AirQualityLevel) Schema() json.RawMessage { return json.RawMessage(airQualityLevelSchema) }

type airQualityLevelState struct {
	Temperature       float64 `json:"temperature"`
	TemperatureRating string  `json:"temperatureRating"`
	Humidity          float64 `json:"humidity"`
	HumidityRating    string  `json:"humidityRating"`
	Purity            float64 `json:"purity"`
	PurityRating      string  `json:"purityRating"`
	Description       string  `json:"description"`
	CombinedRating    string  `json:"combinedRating"`
}

func (AirQualityLevel) HandleState(doc json.RawMessage) ([]Update, error) {
	var state airQualityLevelState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	updates := []Update{
		{Channel: ChannelTemperature, Value: state.Temperature, Unit: UnitCelsius},
		{Channel: ChannelHumidity, Value: state.Humidity, Unit: UnitPercent},
		{Channel: ChannelPurity, Value: state.Purity, Unit: UnitPPM},
	}
	if state.TemperatureRating != "" {
		updates = append(updates, Update{Channel: ChannelTemperatureRating, Value: state.TemperatureRating})
	}
	if state.HumidityRating != "" {
		updates = append(updates, Update{Channel: ChannelHumidityRating, Value: state.HumidityRating})
	}
	if state.PurityRating != "" {
		updates = append(updates, Update{Channel: ChannelPurityRating, Value: state.PurityRating})
	}
	if state.Description != "" {
		updates = append(updates, Update{Channel: ChannelAirDescription, Value: state.Description})
	}
	if state.CombinedRating != "" {
		updates = append(updates, Update{Channel: ChannelCombinedRating, Value: state.CombinedRating})
	}
	return updates, nil
}

func (AirQualityLevel) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	return nil, fmt.Errorf("%w: AirQualityLevel is read-only", ErrUnsupportedCommand)
}

var _ Service = AirQualityLevel{}
