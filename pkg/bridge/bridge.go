// Package bridge is the runtime that owns one controller connection: the
// lifecycle state machine, the device handler table, command dispatch and
// thing discovery.
package bridge

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/longpoll"
	"github.com/shc-gateway/shc-go/pkg/model"
	"github.com/shc-gateway/shc-go/pkg/pairing"
	"github.com/shc-gateway/shc-go/pkg/services"
	"github.com/shc-gateway/shc-go/pkg/version"
)

// Bridge errors.
var (
	// ErrConfig indicates missing or malformed configuration. Terminal.
	ErrConfig = errors.New("configuration error")

	// ErrNotOnline is returned by operations that need a running bridge.
	ErrNotOnline = errors.New("bridge is not online")

	// ErrUnknownDevice is returned for commands on devices without a
	// handler.
	ErrUnknownDevice = errors.New("unknown device")
)

// Config configures a Bridge.
type Config struct {
	// Host is the controller's IP address. Required.
	Host string

	// SystemPassword is needed only while the controller does not know
	// the client certificate yet.
	SystemPassword string

	// ControllerID is the controller's MAC-derived identifier when known
	// from configuration; discovered from public information otherwise.
	ControllerID string

	// Store persists the client credential and the pinned controller
	// certificate. Required.
	Store cert.Store

	// Registry is the service plug-in catalog. Defaults to the built-ins.
	Registry *services.Registry

	// Sink receives channel updates. Required.
	Sink ChannelSink

	// Logger receives gateway events. Nil disables logging.
	Logger log.Logger

	// Poll timing; zero values take the longpoll defaults.
	PollWaitSeconds      int
	PollReadTimeout      time.Duration
	PollRetryDelay       time.Duration
	PollResubscribeDelay time.Duration

	// Base URL overrides for tests; derived from Host when empty.
	ServicesURL   string
	PairingURL    string
	PublicInfoURL string
}

// Bridge drives one controller connection. Create with New, start with
// Initialize, stop with Dispose.
type Bridge struct {
	cfg      Config
	id       string
	logger   log.Logger
	registry *services.Registry

	mu      sync.RWMutex
	state   State
	client  *httpclient.Client
	rooms   []model.Room
	devices []model.Device

	table     *HandlerTable
	validator *services.Validator
	driver    *longpoll.Driver

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Bridge. Configuration errors surface here, not in
// Initialize.
func New(cfg Config) (*Bridge, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: controller host is required", ErrConfig)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: credential store is required", ErrConfig)
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("%w: channel sink is required", ErrConfig)
	}
	if cfg.Registry == nil {
		cfg.Registry = services.NewDefaultRegistry()
	}

	return &Bridge{
		cfg:       cfg,
		id:        uuid.New().String(),
		logger:    log.OrNoop(cfg.Logger),
		registry:  cfg.Registry,
		table:     NewHandlerTable(),
		validator: services.NewValidator(),
	}, nil
}

// ID returns the bridge run id carried in log events.
func (b *Bridge) ID() string { return b.id }

// State returns the current bridge state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Initialize starts the bridge in the background: pairing, snapshot fetch,
// handler registration and the long-poll loop. It returns immediately;
// progress is observable via State and the event log.
func (b *Bridge) Initialize(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateUninitialized {
		b.mu.Unlock()
		return fmt.Errorf("initialize from state %s", b.state)
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.initialize(ctx)
	}()
	return nil
}

func (b *Bridge) initialize(ctx context.Context) {
	b.setState(StateConnecting, "initializing")

	identity := cert.Identity{IPAddress: b.cfg.Host, ControllerID: b.cfg.ControllerID}
	credential, err := b.cfg.Store.Create(identity)
	if err != nil {
		b.fail(StateOfflineConfigError, fmt.Errorf("materializing credential: %w", err))
		return
	}

	var pinned *x509.Certificate
	if c, err := b.cfg.Store.PinnedServerCert(identity); err == nil {
		pinned = c
	}

	client, err := httpclient.New(httpclient.Config{
		Host:             b.cfg.Host,
		Credential:       credential,
		PinnedServerCert: pinned,
		OnPinServerCert: func(c *x509.Certificate) error {
			return b.cfg.Store.PinServerCert(identity, c)
		},
		GatewayID:     b.cfg.ControllerID,
		Logger:        b.logger,
		BridgeID:      b.id,
		ServicesURL:   b.cfg.ServicesURL,
		PairingURL:    b.cfg.PairingURL,
		PublicInfoURL: b.cfg.PublicInfoURL,
	})
	if err != nil {
		b.fail(StateOfflineConfigError, err)
		return
	}
	b.mu.Lock()
	b.client = client
	b.mu.Unlock()

	// The Gateway-ID header value comes from the controller itself; the
	// public information endpoint is unauthenticated and available before
	// pairing.
	info, err := client.PublicInformation(ctx)
	if err != nil {
		b.fail(StateOfflineCommError, fmt.Errorf("fetching public information: %w", err))
		return
	}
	gatewayID := info.GatewayID(b.cfg.ControllerID)
	if gatewayID == "" {
		b.fail(StateOfflineConfigError, fmt.Errorf("%w: controller reported no identifier and none is configured", ErrConfig))
		return
	}
	client.SetGatewayID(gatewayID)

	if !version.Supported(info.APIVersions) {
		// Old firmware mostly still answers the endpoints we use, so this
		// is a warning, not a failure.
		b.logger.Log(log.Event{
			Timestamp:      time.Now(),
			BridgeID:       b.id,
			Direction:      log.DirectionIn,
			Category:       log.CategoryError,
			ControllerAddr: b.cfg.Host,
			Error: &log.ErrorEventData{
				Message: fmt.Sprintf("controller API versions %v predate %s", info.APIVersions, version.Minimum),
				Context: "initialization",
			},
		})
	}

	b.setState(StatePairing, "checking pairing")
	pairer := pairing.NewDriver(client, credential, b.logger, b.id)
	if err := pairer.Pair(ctx, b.cfg.SystemPassword); err != nil {
		switch {
		case errors.Is(err, pairing.ErrRequiresPassword), errors.Is(err, pairing.ErrFailed):
			b.fail(StateOfflineConfigError, err)
		default:
			b.fail(StateOfflineCommError, err)
		}
		return
	}

	b.setState(StateFetchingRoomsDevices, "paired")
	rooms, err := client.Rooms(ctx)
	if err != nil {
		b.fail(StateOfflineCommError, fmt.Errorf("fetching rooms: %w", err))
		return
	}
	devices, err := client.Devices(ctx)
	if err != nil {
		b.fail(StateOfflineCommError, fmt.Errorf("fetching devices: %w", err))
		return
	}
	b.mu.Lock()
	b.rooms = rooms
	b.devices = devices
	b.mu.Unlock()

	for _, device := range devices {
		handler := NewHandler(device, b.registry, client, b.validator, b.cfg.Sink, b.logger, b.id)
		if handler == nil {
			continue
		}
		b.table.Register(device.ID, handler)
	}

	poller := longpoll.New(longpoll.Config{
		Client:           client,
		Dispatch:         b.dispatch,
		Logger:           b.logger,
		BridgeID:         b.id,
		WaitSeconds:      b.cfg.PollWaitSeconds,
		ReadTimeout:      b.cfg.PollReadTimeout,
		RetryDelay:       b.cfg.PollRetryDelay,
		ResubscribeDelay: b.cfg.PollResubscribeDelay,
	})
	b.mu.Lock()
	b.driver = poller
	b.mu.Unlock()

	if err := poller.Start(ctx); err != nil {
		b.fail(StateOfflineCommError, err)
		return
	}
	b.setState(StateOnline, "handlers registered, polling")

	// Prime channels from current service states in the background; the
	// poll loop is already delivering fresh updates.
	for _, id := range b.table.DeviceIDs() {
		if handler, ok := b.table.Lookup(id); ok {
			handler.RefreshAll(ctx)
		}
	}
}

// dispatch delivers one notification to the owning handler. Runs on the
// long-poll goroutine; batch order gives per-device ordering.
func (b *Bridge) dispatch(n model.Notification) {
	handler, ok := b.table.Lookup(n.DeviceID)
	if !ok {
		b.logger.Log(log.Event{
			Timestamp: time.Now(),
			BridgeID:  b.id,
			Direction: log.DirectionIn,
			Category:  log.CategoryDispatch,
			DeviceID:  n.DeviceID,
			Service:   n.ID,
			Error:     &log.ErrorEventData{Message: "no handler for device", Context: "update dispatch"},
		})
		return
	}
	handler.OnUpdate(n.ID, n.State)
}

// Dispose shuts the bridge down: the long-poll driver stops with a
// best-effort unsubscribe and no further work is scheduled.
func (b *Bridge) Dispose(ctx context.Context) {
	b.mu.Lock()
	driver := b.driver
	cancel := b.cancel
	b.mu.Unlock()

	if driver != nil {
		driver.Stop(ctx)
	}
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	b.setState(StateShutdown, "disposed")
}

// HandleCommand routes an outbound channel command to the device's
// handler. The PUT is synchronous; callers should bound ctx.
func (b *Bridge) HandleCommand(ctx context.Context, deviceID, channel string, cmd services.Command) error {
	if b.State() != StateOnline {
		return ErrNotOnline
	}
	handler, ok := b.table.Lookup(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return handler.OnCommand(ctx, channel, cmd)
}

// RefreshChannel re-reads the service state feeding one channel.
func (b *Bridge) RefreshChannel(ctx context.Context, deviceID, channel string) error {
	handler, ok := b.table.Lookup(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	return handler.RefreshChannel(ctx, channel)
}

// Rooms returns the room snapshot pulled at bridge start.
func (b *Bridge) Rooms() []model.Room {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Room(nil), b.rooms...)
}

// Devices returns the device snapshot pulled at bridge start.
func (b *Bridge) Devices() []model.Device {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Device(nil), b.devices...)
}

// RoomForDevice resolves a device's room against the rooms snapshot.
func (b *Bridge) RoomForDevice(deviceID string) (model.Room, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, d := range b.devices {
		if d.ID != deviceID {
			continue
		}
		for _, r := range b.rooms {
			if r.ID == d.RoomID {
				return r, true
			}
		}
		break
	}
	return model.Room{}, false
}

// StartScan walks the device snapshot and reports the devices the gateway
// can materialize as things. Unsupported models are skipped with a log
// entry.
func (b *Bridge) StartScan() []DiscoveredThing {
	b.mu.RLock()
	devices := append([]model.Device(nil), b.devices...)
	b.mu.RUnlock()

	var discovered []DiscoveredThing
	for _, device := range devices {
		thingType, ok := ThingTypeFor(device.DeviceModel)
		if !ok {
			b.logger.Log(log.Event{
				Timestamp: time.Now(),
				BridgeID:  b.id,
				Direction: log.DirectionIn,
				Category:  log.CategoryDispatch,
				DeviceID:  device.ID,
				Error: &log.ErrorEventData{
					Message: fmt.Sprintf("unsupported device model %q", device.DeviceModel),
					Context: "thing discovery",
				},
			})
			continue
		}

		thing := DiscoveredThing{
			Type:     thingType,
			DeviceID: device.ID,
			Name:     device.Name,
			Model:    device.DeviceModel,
		}
		if room, ok := b.RoomForDevice(device.ID); ok {
			thing.RoomName = room.Name
		}
		discovered = append(discovered, thing)
	}
	return discovered
}

func (b *Bridge) setState(s State, reason string) {
	b.mu.Lock()
	old := b.state
	b.state = s
	b.mu.Unlock()
	if old == s {
		return
	}
	b.logger.Log(log.Event{
		Timestamp:      time.Now(),
		BridgeID:       b.id,
		Direction:      log.DirectionIn,
		Category:       log.CategoryState,
		ControllerAddr: b.cfg.Host,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityBridge,
			OldState: old.String(),
			NewState: s.String(),
			Reason:   reason,
		},
	})
}

func (b *Bridge) fail(s State, err error) {
	b.logger.Log(log.Event{
		Timestamp:      time.Now(),
		BridgeID:       b.id,
		Direction:      log.DirectionIn,
		Category:       log.CategoryError,
		ControllerAddr: b.cfg.Host,
		Error:          &log.ErrorEventData{Message: err.Error(), Context: "initialization"},
	})
	b.setState(s, err.Error())
}
