package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
)

// Instance binds one plug-in to one device. It owns the schema gate on
// inbound documents and the HTTP reads and writes for its service. Created
// by a device handler; lifetime equals the handler's.
type Instance struct {
	svc       Service
	deviceID  string
	client    *httpclient.Client
	validator *Validator
	logger    log.Logger
	bridgeID  string
}

// NewInstance creates an instance of svc for one device.
func NewInstance(svc Service, deviceID string, client *httpclient.Client, validator *Validator, logger log.Logger, bridgeID string) *Instance {
	if validator == nil {
		validator = NewValidator()
	}
	return &Instance{
		svc:       svc,
		deviceID:  deviceID,
		client:    client,
		validator: validator,
		logger:    log.OrNoop(logger),
		bridgeID:  bridgeID,
	}
}

// Name returns the controller-side service name.
func (i *Instance) Name() string { return i.svc.Name() }

// Channels returns the channels the plug-in feeds.
func (i *Instance) Channels() []string { return i.svc.Channels() }

// HandleUpdate validates an inbound state document against the service
// schema and projects it to channel updates. A document that fails
// validation is dropped with ErrDecode; it never produces updates.
func (i *Instance) HandleUpdate(doc json.RawMessage) ([]Update, error) {
	if err := i.validator.Validate(i.svc.Schema(), doc); err != nil {
		i.logDispatch(err)
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	updates, err := i.svc.HandleState(doc)
	if err != nil {
		i.logDispatch(err)
		return nil, err
	}
	i.logDispatch(nil)
	return updates, nil
}

// Refresh fetches the current state document and projects it.
func (i *Instance) Refresh(ctx context.Context) ([]Update, error) {
	doc, err := i.client.GetServiceState(ctx, i.deviceID, i.svc.Name())
	if err != nil {
		return nil, fmt.Errorf("fetching %s state: %w", i.svc.Name(), err)
	}
	return i.HandleUpdate(doc)
}

// Send encodes a channel command and writes the resulting state document.
func (i *Instance) Send(ctx context.Context, channel string, cmd Command) error {
	doc, err := i.svc.EncodeCommand(channel, cmd)
	if err != nil {
		return err
	}
	if err := i.client.PutServiceState(ctx, i.deviceID, i.svc.Name(), doc); err != nil {
		return fmt.Errorf("writing %s state: %w", i.svc.Name(), err)
	}
	return nil
}

func (i *Instance) logDispatch(err error) {
	event := log.Event{
		Timestamp: time.Now(),
		BridgeID:  i.bridgeID,
		Direction: log.DirectionIn,
		Category:  log.CategoryDispatch,
		DeviceID:  i.deviceID,
		Service:   i.svc.Name(),
	}
	if err != nil {
		event.Error = &log.ErrorEventData{Message: err.Error(), Context: "state dispatch"}
	}
	i.logger.Log(event)
}
