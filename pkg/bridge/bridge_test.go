package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/model"
	"github.com/shc-gateway/shc-go/pkg/services"
)

// shcController simulates a whole controller on one TLS listener: public
// information, pairing, snapshots, service state and the JSON-RPC poll
// endpoint. Poll responses are pushed through the poll channel; an empty
// channel blocks like a real long poll.
type shcController struct {
	paired  atomic.Bool
	enrolls atomic.Int32

	mu        sync.Mutex
	rooms     []model.Room
	devices   []model.Device
	states    map[string]string // "deviceID/service" -> state document
	putBodies []string
	subSerial int

	poll chan string
}

func newShcController() *shcController {
	return &shcController{
		states: make(map[string]string),
		poll:   make(chan string, 8),
	}
}

func (c *shcController) setState(deviceID, service, doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[deviceID+"/"+service] = doc
}

func (c *shcController) recordedPuts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.putBodies...)
}

func (c *shcController) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/smarthome/public/information", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"macAddress":"64-da-a0-02-14-9b","shcIpAddress":"127.0.0.1","shcGeneration":"SHC_1"}`))
	})

	mux.HandleFunc("/smarthome/clients", func(w http.ResponseWriter, r *http.Request) {
		c.enrolls.Add(1)
		if r.Header.Get("Systempassword") == "" {
			http.Error(w, "password missing", http.StatusUnauthorized)
			return
		}
		c.paired.Store(true)
		w.WriteHeader(http.StatusCreated)
	})

	mux.HandleFunc("/smarthome/rooms", func(w http.ResponseWriter, r *http.Request) {
		if !c.paired.Load() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		json.NewEncoder(w).Encode(c.rooms)
	})

	mux.HandleFunc("/smarthome/devices", func(w http.ResponseWriter, r *http.Request) {
		if !c.paired.Load() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		json.NewEncoder(w).Encode(c.devices)
	})

	mux.HandleFunc("/smarthome/devices/", func(w http.ResponseWriter, r *http.Request) {
		// /smarthome/devices/{id}/services/{service}/state
		deviceID, service, ok := splitServicePath(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodGet:
			c.mu.Lock()
			doc, ok := c.states[deviceID+"/"+service]
			c.mu.Unlock()
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(doc))
		case http.MethodPut:
			var body json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding PUT body: %v", err)
				return
			}
			c.mu.Lock()
			c.putBodies = append(c.putBodies, string(body))
			c.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		}
	})

	mux.HandleFunc("/remote/json-rpc", func(w http.ResponseWriter, r *http.Request) {
		var req model.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding RPC request: %v", err)
			return
		}
		switch req.Method {
		case model.MethodSubscribe:
			c.mu.Lock()
			c.subSerial++
			id := fmt.Sprintf("sub-%d", c.subSerial)
			c.mu.Unlock()
			fmt.Fprintf(w, `{"result":%q,"jsonrpc":"2.0"}`, id)
		case model.MethodLongPoll:
			select {
			case body := <-c.poll:
				w.Write([]byte(body))
			case <-r.Context().Done():
			}
		case model.MethodUnsubscribe:
			w.Write([]byte(`{"result":null,"jsonrpc":"2.0"}`))
		}
	})

	return mux
}

// splitServicePath extracts device id and service name from a
// /smarthome/devices/{id}/services/{service}/state path.
func splitServicePath(path string) (deviceID, service string, ok bool) {
	rest, found := strings.CutPrefix(path, "/smarthome/devices/")
	if !found {
		return "", "", false
	}
	rest, found = strings.CutSuffix(rest, "/state")
	if !found {
		return "", "", false
	}
	deviceID, service, found = strings.Cut(rest, "/services/")
	if !found || deviceID == "" || service == "" {
		return "", "", false
	}
	return deviceID, service, true
}

// updateSink records channel updates keyed by device.
type updateSink struct {
	mu      sync.Mutex
	updates []sinkEntry
}

type sinkEntry struct {
	deviceID string
	update   services.Update
}

func (s *updateSink) sink(deviceID string, update services.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, sinkEntry{deviceID, update})
}

func (s *updateSink) find(deviceID, channel string) (services.Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.updates {
		if e.deviceID == deviceID && e.update.Channel == channel {
			return e.update, true
		}
	}
	return services.Update{}, false
}

func testPlugDevice() model.Device {
	return model.Device{
		Type:        "device",
		ID:          "hdm:HomeMaticIP:plug-1",
		ServiceIDs:  []string{"PowerSwitch"},
		RoomID:      "hz_1",
		DeviceModel: "PSM",
		Name:        "Kitchen Plug",
		Status:      model.StatusAvailable,
	}
}

func newTestBridge(t *testing.T, controller *shcController, password string) (*Bridge, *updateSink) {
	t.Helper()
	server := httptest.NewTLSServer(controller.handler(t))
	t.Cleanup(server.Close)

	sink := &updateSink{}
	b, err := New(Config{
		Host:           "127.0.0.1",
		SystemPassword: password,
		Store:          cert.NewMemoryStore(),
		Sink:           sink.sink,

		PollWaitSeconds:      1,
		PollReadTimeout:      2 * time.Second,
		PollRetryDelay:       20 * time.Millisecond,
		PollResubscribeDelay: 20 * time.Millisecond,

		ServicesURL:   server.URL,
		PairingURL:    server.URL,
		PublicInfoURL: server.URL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b, sink
}

func waitForState(t *testing.T, b *Bridge, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if b.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("bridge state = %s, want %s", b.State(), want)
}

func TestBridge_Bootstrap(t *testing.T) {
	controller := newShcController()
	controller.mu.Lock()
	controller.rooms = []model.Room{{Type: "room", ID: "hz_1", Name: "Kitchen"}}
	controller.devices = []model.Device{testPlugDevice()}
	controller.mu.Unlock()
	controller.setState("hdm:HomeMaticIP:plug-1", "PowerSwitch",
		`{"@type":"powerSwitchState","switchState":"ON"}`)

	b, sink := newTestBridge(t, controller, "1234567890123456")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Dispose(context.Background())

	waitForState(t, b, StateOnline)

	if got := controller.enrolls.Load(); got != 1 {
		t.Errorf("enrollments = %d, want 1", got)
	}
	if got := len(b.Rooms()); got != 1 {
		t.Errorf("len(Rooms()) = %d, want 1", got)
	}
	if got := len(b.Devices()); got != 1 {
		t.Errorf("len(Devices()) = %d, want 1", got)
	}

	// RefreshAll primes the channel from the current switch state.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sink.find("hdm:HomeMaticIP:plug-1", services.ChannelPowerSwitch); ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	update, ok := sink.find("hdm:HomeMaticIP:plug-1", services.ChannelPowerSwitch)
	if !ok {
		t.Fatal("no power-switch update after coming online")
	}
	if update.Value != "ON" {
		t.Errorf("power-switch value = %v, want ON", update.Value)
	}
}

func TestBridge_AlreadyPairedSkipsEnrollment(t *testing.T) {
	controller := newShcController()
	controller.paired.Store(true)
	controller.mu.Lock()
	controller.devices = []model.Device{testPlugDevice()}
	controller.mu.Unlock()

	b, _ := newTestBridge(t, controller, "")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Dispose(context.Background())

	waitForState(t, b, StateOnline)
	if got := controller.enrolls.Load(); got != 0 {
		t.Errorf("enrollments = %d, want 0 on paired controller", got)
	}
}

func TestBridge_PairingRequiresPassword(t *testing.T) {
	controller := newShcController()
	b, _ := newTestBridge(t, controller, "")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Dispose(context.Background())

	waitForState(t, b, StateOfflineConfigError)
}

func TestBridge_DispatchUpdate(t *testing.T) {
	controller := newShcController()
	controller.paired.Store(true)
	controller.mu.Lock()
	controller.devices = []model.Device{testPlugDevice()}
	controller.mu.Unlock()

	b, sink := newTestBridge(t, controller, "")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Dispose(context.Background())
	waitForState(t, b, StateOnline)

	controller.poll <- `{"result":[{"path":"/devices/hdm:HomeMaticIP:plug-1/services/PowerSwitch",` +
		`"@type":"DeviceServiceData","id":"PowerSwitch",` +
		`"state":{"@type":"powerSwitchState","switchState":"OFF"},` +
		`"deviceId":"hdm:HomeMaticIP:plug-1"}],"jsonrpc":"2.0"}`

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if u, ok := sink.find("hdm:HomeMaticIP:plug-1", services.ChannelPowerSwitch); ok && u.Value == "OFF" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("poll notification never reached the sink")
}

func TestBridge_HandleCommand(t *testing.T) {
	controller := newShcController()
	controller.paired.Store(true)
	controller.mu.Lock()
	controller.devices = []model.Device{testPlugDevice()}
	controller.mu.Unlock()

	b, _ := newTestBridge(t, controller, "")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Dispose(context.Background())
	waitForState(t, b, StateOnline)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.HandleCommand(ctx, "hdm:HomeMaticIP:plug-1", services.ChannelPowerSwitch, services.On()); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	puts := controller.recordedPuts()
	if len(puts) != 1 {
		t.Fatalf("PUT count = %d, want 1", len(puts))
	}
	want := `{"@type":"powerSwitchState","switchState":"ON"}`
	if puts[0] != want {
		t.Errorf("PUT body = %s, want %s", puts[0], want)
	}

	err := b.HandleCommand(ctx, "no-such-device", services.ChannelPowerSwitch, services.On())
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("HandleCommand(unknown device) error = %v, want ErrUnknownDevice", err)
	}
}

func TestBridge_CommandBeforeOnline(t *testing.T) {
	b, err := New(Config{
		Host:  "127.0.0.1",
		Store: cert.NewMemoryStore(),
		Sink:  func(string, services.Update) {},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cmdErr := b.HandleCommand(context.Background(), "dev", services.ChannelPowerSwitch, services.On())
	if !errors.Is(cmdErr, ErrNotOnline) {
		t.Errorf("HandleCommand() before Initialize error = %v, want ErrNotOnline", cmdErr)
	}
}

func TestBridge_Dispose(t *testing.T) {
	controller := newShcController()
	controller.paired.Store(true)
	controller.mu.Lock()
	controller.devices = []model.Device{testPlugDevice()}
	controller.mu.Unlock()

	b, _ := newTestBridge(t, controller, "")
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	waitForState(t, b, StateOnline)

	b.Dispose(context.Background())
	if got := b.State(); got != StateShutdown {
		t.Errorf("State() after Dispose = %s, want %s", got, StateShutdown)
	}
}

func TestBridge_ConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{Store: cert.NewMemoryStore(), Sink: func(string, services.Update) {}}},
		{"missing store", Config{Host: "127.0.0.1", Sink: func(string, services.Update) {}}},
		{"missing sink", Config{Host: "127.0.0.1", Store: cert.NewMemoryStore()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); !errors.Is(err, ErrConfig) {
				t.Errorf("New() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestBridge_RoomForDevice(t *testing.T) {
	b := &Bridge{
		rooms: []model.Room{
			{ID: "hz_1", Name: "Kitchen"},
			{ID: "hz_2", Name: "Bedroom"},
		},
		devices: []model.Device{
			testPlugDevice(),
			{ID: "hdm:ZigBee:orphan", Name: "Orphan", RoomID: "hz_9"},
		},
	}

	room, ok := b.RoomForDevice("hdm:HomeMaticIP:plug-1")
	if !ok || room.Name != "Kitchen" {
		t.Errorf("RoomForDevice() = %v, %v, want Kitchen", room, ok)
	}
	if _, ok := b.RoomForDevice("hdm:ZigBee:orphan"); ok {
		t.Error("RoomForDevice() resolved a device with an unknown room")
	}
	if _, ok := b.RoomForDevice("no-such-device"); ok {
		t.Error("RoomForDevice() resolved an unknown device")
	}
}

func TestBridge_StartScan(t *testing.T) {
	b := &Bridge{
		logger: log.OrNoop(nil),
		rooms:  []model.Room{{ID: "hz_1", Name: "Kitchen"}},
		devices: []model.Device{
			testPlugDevice(),
			{ID: "hdm:ZigBee:shutter-1", Name: "Shutter", DeviceModel: "BBL"},
			{ID: "hdm:ZigBee:oddball", Name: "Oddball", DeviceModel: "UNKNOWN_MODEL"},
		},
	}

	things := b.StartScan()
	if len(things) != 2 {
		t.Fatalf("len(StartScan()) = %d, want 2", len(things))
	}
	if things[0].Type != ThingInWallSwitch || things[0].RoomName != "Kitchen" {
		t.Errorf("things[0] = %+v", things[0])
	}
	if things[1].Type != ThingShutterControl || things[1].RoomName != "" {
		t.Errorf("things[1] = %+v", things[1])
	}
}
