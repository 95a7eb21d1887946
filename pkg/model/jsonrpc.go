package model

import "encoding/json"

// JSON-RPC methods understood by the controller's /remote/json-rpc endpoint.
const (
	MethodSubscribe   = "RE/subscribe"
	MethodLongPoll    = "RE/longPoll"
	MethodUnsubscribe = "RE/unsubscribe"
)

// SubscriptionTopic is the topic filter for remote state notifications.
const SubscriptionTopic = "com/bosch/sh/remote/*"

// ErrCodeSubscriptionInvalid is returned by the controller when a long poll
// references a subscription id it no longer knows.
const ErrCodeSubscriptionInvalid = 300

// RPCRequest is the JSON-RPC request envelope.
//
// Wire example:
//
//	{"jsonrpc":"2.0","method":"RE/longPoll","params":["e71k823d0-16",20]}
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewSubscribeRequest builds the RE/subscribe request for the remote topic.
// The trailing null in params is of unclear necessity in the protocol but the
// controller is known to accept it, so it is preserved for compatibility.
func NewSubscribeRequest() RPCRequest {
	return RPCRequest{
		JSONRPC: "2.0",
		Method:  MethodSubscribe,
		Params:  []any{SubscriptionTopic, nil},
	}
}

// NewLongPollRequest builds the RE/longPoll request. waitSeconds is how long
// the controller holds the request before returning an empty batch.
func NewLongPollRequest(subscriptionID string, waitSeconds int) RPCRequest {
	return RPCRequest{
		JSONRPC: "2.0",
		Method:  MethodLongPoll,
		Params:  []any{subscriptionID, waitSeconds},
	}
}

// NewUnsubscribeRequest builds the RE/unsubscribe request.
func NewUnsubscribeRequest(subscriptionID string) RPCRequest {
	return RPCRequest{
		JSONRPC: "2.0",
		Method:  MethodUnsubscribe,
		Params:  []any{subscriptionID},
	}
}

// SubscribeResult is the response to RE/subscribe; Result carries the opaque
// subscription id.
//
// Wire example:
//
//	{"result":"e71k823d0-16","jsonrpc":"2.0"}
type SubscribeResult struct {
	Result  string `json:"result"`
	JSONRPC string `json:"jsonrpc"`
}

// Notification is one state change entry in a long-poll batch.
//
// Wire example:
//
//	{
//	  "path":"/devices/hdm:ZigBee:000d6f0004b95a62/services/LatestMotion",
//	  "@type":"DeviceServiceData",
//	  "id":"LatestMotion",
//	  "state":{"latestMotionDetected":"2020-04-03T19:02:19.054Z","@type":"latestMotionState"},
//	  "deviceId":"hdm:ZigBee:000d6f0004b95a62"
//	}
type Notification struct {
	Path     string          `json:"path"`
	Type     string          `json:"@type"`
	ID       string          `json:"id"`
	State    json.RawMessage `json:"state"`
	DeviceID string          `json:"deviceId"`
}

// LongPollResult is a successful long-poll response: a batch of
// notifications, possibly empty when the server-side wait elapsed.
type LongPollResult struct {
	Result  []Notification `json:"result"`
	JSONRPC string         `json:"jsonrpc"`
}

// RPCError is the error response envelope.
//
// Wire example:
//
//	{"jsonrpc":"2.0","error":{"code":300,"message":"WRONG_SESSION"}}
type RPCError struct {
	JSONRPC string `json:"jsonrpc"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SubscriptionInvalid reports whether the error says the subscription id is
// no longer valid.
func (e RPCError) SubscriptionInvalid() bool {
	return e.Error != nil && e.Error.Code == ErrCodeSubscriptionInvalid
}
