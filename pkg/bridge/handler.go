package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/model"
	"github.com/shc-gateway/shc-go/pkg/services"
)

// ErrUnknownChannel is returned for commands on channels the handler does
// not expose.
var ErrUnknownChannel = errors.New("unknown channel")

// ChannelSink receives normalized channel updates from device handlers.
// Calls arrive from the long-poll goroutine and from RefreshChannel
// callers; implementations must be safe for concurrent use.
type ChannelSink func(deviceID string, update services.Update)

// Handler owns one device: an ordered set of service plug-in instances and
// the channels they feed. Created when the bridge comes online, torn down
// with it.
type Handler struct {
	device    model.Device
	instances []*services.Instance
	byService map[string]*services.Instance
	byChannel map[string]*services.Instance
	sink      ChannelSink
	logger    log.Logger
	bridgeID  string
}

// NewHandler creates a handler for device using the plug-ins registered
// for the device's services. Services without a registered plug-in are
// skipped; a device yielding no instances gets no handler.
func NewHandler(device model.Device, registry *services.Registry, client *httpclient.Client, validator *services.Validator, sink ChannelSink, logger log.Logger, bridgeID string) *Handler {
	h := &Handler{
		device:    device,
		byService: make(map[string]*services.Instance),
		byChannel: make(map[string]*services.Instance),
		sink:      sink,
		logger:    log.OrNoop(logger),
		bridgeID:  bridgeID,
	}

	for _, serviceID := range device.ServiceIDs {
		svc, ok := registry.Lookup(serviceID)
		if !ok {
			continue
		}
		instance := services.NewInstance(svc, device.ID, client, validator, logger, bridgeID)
		h.instances = append(h.instances, instance)
		h.byService[svc.Name()] = instance
		for _, channel := range svc.Channels() {
			h.byChannel[channel] = instance
		}
	}

	if len(h.instances) == 0 {
		return nil
	}
	return h
}

// Device returns the device this handler owns.
func (h *Handler) Device() model.Device { return h.device }

// Channels lists the abstract channels the handler exposes.
func (h *Handler) Channels() []string {
	channels := make([]string, 0, len(h.byChannel))
	for _, instance := range h.instances {
		channels = append(channels, instance.Channels()...)
	}
	return channels
}

// OnUpdate routes an inbound state document to the instance with the
// matching service name. Unknown services and documents that fail the
// schema gate are dropped; neither stops the poll loop.
func (h *Handler) OnUpdate(serviceName string, state json.RawMessage) {
	instance, ok := h.byService[serviceName]
	if !ok {
		h.logDrop(serviceName, "no plug-in instance for service")
		return
	}

	updates, err := instance.HandleUpdate(state)
	if err != nil {
		// Already logged by the instance; the document is dropped.
		return
	}
	for _, u := range updates {
		h.sink(h.device.ID, u)
	}
}

// OnCommand routes an outbound channel command to the owning instance and
// writes the encoded state document.
func (h *Handler) OnCommand(ctx context.Context, channel string, cmd services.Command) error {
	instance, ok := h.byChannel[channel]
	if !ok {
		return fmt.Errorf("%w: %q on device %s", ErrUnknownChannel, channel, h.device.ID)
	}
	return instance.Send(ctx, channel, cmd)
}

// RefreshChannel fetches the state of the service feeding a channel and
// re-emits its updates.
func (h *Handler) RefreshChannel(ctx context.Context, channel string) error {
	instance, ok := h.byChannel[channel]
	if !ok {
		return fmt.Errorf("%w: %q on device %s", ErrUnknownChannel, channel, h.device.ID)
	}

	updates, err := instance.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, u := range updates {
		h.sink(h.device.ID, u)
	}
	return nil
}

// RefreshAll primes every channel from the current service states. Used
// when the handler comes up.
func (h *Handler) RefreshAll(ctx context.Context) {
	for _, instance := range h.instances {
		updates, err := instance.Refresh(ctx)
		if err != nil {
			// A service that cannot be read yet is not fatal; the next
			// notification will fill the channel.
			continue
		}
		for _, u := range updates {
			h.sink(h.device.ID, u)
		}
	}
}

func (h *Handler) logDrop(serviceName, reason string) {
	h.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		BridgeID:  h.bridgeID,
		Category:  log.CategoryDispatch,
		DeviceID:  h.device.ID,
		Service:   serviceName,
		Error:     &log.ErrorEventData{Message: reason, Context: "update dispatch"},
	})
}
