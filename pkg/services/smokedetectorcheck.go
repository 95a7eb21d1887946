package services

import (
	"encoding/json"
	"fmt"
)

// ChannelSmokeCheck carries the result of the last smoke test.
const ChannelSmokeCheck = "smoke-check"

// SmokeTestRequested is the value written to request a new smoke test.
const SmokeTestRequested = "SMOKE_TEST_REQUESTED"

const smokeDetectorCheckSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "smokeDetectorCheckState"},
		"value": {"type": "string"}
	},
	"required": ["value"]
}`

// SmokeDetectorCheck is the plug-in for the SmokeDetectorCheck service.
// It reports the result of the last smoke test and can request a new one.
type SmokeDetectorCheck struct{}

func (SmokeDetectorCheck) Name() string            { return "SmokeDetectorCheck" }
func (SmokeDetectorCheck) Channels() []string      { return []string{ChannelSmokeCheck} }
func (SmokeDetectorCheck) Schema() json.RawMessage { return json.RawMessage(smokeDetectorCheckSchema) }

type smokeDetectorCheckState struct {
	Value string `json:"value"`
}

func (SmokeDetectorCheck) HandleState(doc json.RawMessage) ([]Update, error) {
	var state smokeDetectorCheckState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelSmokeCheck, Value: state.Value}}, nil
}

func (SmokeDetectorCheck) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	if channel != ChannelSmokeCheck || cmd.Action != ActionPlay {
		return nil, fmt.Errorf("%w: %s on channel %q", ErrUnsupportedCommand, cmd.Action, channel)
	}
	return json.RawMessage(`{"@type":"smokeDetectorCheckState","value":"` + SmokeTestRequested + `"}`), nil
}

var _ Service = SmokeDetectorCheck{}
