package services

import (
	"encoding/json"
	"fmt"
)

// ChannelContact carries the open/closed state of a door or window contact.
const ChannelContact = "contact"

const shutterContactSchema = `{
	"type": "object",
	"properties": {
		"@type": {"const": "shutterContactState"},
		"value": {"type": "string", "enum": ["OPEN", "CLOSED"]}
	},
	"required": ["value"]
}`

// ShutterContact is the plug-in for the ShutterContact service of door and
// window contacts.
type ShutterContact struct{}

func (ShutterContact) Name() string            { return "ShutterContact" }
func (ShutterContact) Channels() []string      { return []string{ChannelContact} }
func (ShutterContact) Schema() json.RawMessage { return json.RawMessage(shutterContactSchema) }

type shutterContactState struct {
	Value string `json:"value"`
}

func (ShutterContact) HandleState(doc json.RawMessage) ([]Update, error) {
	var state shutterContactState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return []Update{{Channel: ChannelContact, Value: state.Value}}, nil
}

func (ShutterContact) EncodeCommand(channel string, cmd Command) (json.RawMessage, error) {
	return nil, fmt.Errorf("%w: ShutterContact is read-only", ErrUnsupportedCommand)
}

var _ Service = ShutterContact{}
