package services

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChannelLatestMotion carries the timestamp of the last detected motion.
const ChannelLatestMotion = "latest-motion"

const latestMotionSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "latestMotionState"},
		"latestMotionDetected": {"type": "string"}
	},
	"required": ["latestMotionDetected"]
}`

// LatestMotion is the plug-in for the LatestMotion service of motion
// detectors.
type LatestMotion struct{}

func (LatestMotion) Name() string            { return "LatestMotion" }
func (LatestMotion) Channels() []string      { return []string{ChannelLatestMotion} }
func (LatestMotion) Schema() json.RawMessage { return json.RawMessage(latestMotionSchema) }

type latestMotionState struct {
	LatestMotionDetected string `json:"latestMotionDetected"`
}

func (LatestMotion) HandleState(doc json.RawMessage) ([]Update, error) {
	var state latestMotionState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	detected, err := time.Parse(time.RFC3339Nano, state.LatestMotionDetected)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing motion timestamp: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelLatestMotion, Value: detected}}, nil
}

func (LatestMotion) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	return nil, fmt.Errorf("%w: LatestMotion is read-only", ErrUnsupportedCommand)
}

var _ Service = LatestMotion{}
