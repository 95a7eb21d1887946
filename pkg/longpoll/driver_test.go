package longpoll

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/model"
)

// rpcController simulates the controller's /remote/json-rpc endpoint. Poll
// responses are scripted; every request's method is recorded in order.
type rpcController struct {
	mu        sync.Mutex
	methods   []string
	subSerial int
	inFlight  int
	maxFlight int

	// pollResponses yields one body per RE/longPoll call. When empty the
	// poll blocks until the request context ends.
	pollResponses []string
}

func (c *rpcController) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding RPC request: %v", err)
			return
		}

		c.mu.Lock()
		c.methods = append(c.methods, req.Method)
		// The shutdown unsubscribe may legitimately overlap a poll the
		// server has not noticed aborting yet; exclude it.
		if req.Method != model.MethodUnsubscribe {
			c.inFlight++
			if c.inFlight > c.maxFlight {
				c.maxFlight = c.inFlight
			}
		}
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			if req.Method != model.MethodUnsubscribe {
				c.inFlight--
			}
			c.mu.Unlock()
		}()

		switch req.Method {
		case model.MethodSubscribe:
			c.mu.Lock()
			c.subSerial++
			id := fmt.Sprintf("sub-%d", c.subSerial)
			c.mu.Unlock()
			fmt.Fprintf(w, `{"result":%q,"jsonrpc":"2.0"}`, id)

		case model.MethodLongPoll:
			c.mu.Lock()
			var body string
			if len(c.pollResponses) > 0 {
				body = c.pollResponses[0]
				c.pollResponses = c.pollResponses[1:]
			}
			c.mu.Unlock()
			if body == "" {
				// Hold like a real long poll until the client gives up.
				<-r.Context().Done()
				return
			}
			w.Write([]byte(body))

		case model.MethodUnsubscribe:
			w.Write([]byte(`{"result":null,"jsonrpc":"2.0"}`))
		}
	})
}

func (c *rpcController) recordedMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.methods...)
}

func newTestDriver(t *testing.T, controller *rpcController, dispatch func(model.Notification)) (*Driver, *httptest.Server) {
	t.Helper()
	server := httptest.NewTLSServer(controller.handler(t))
	t.Cleanup(server.Close)

	cred, err := cert.NewCredential()
	require.NoError(t, err)
	client, err := httpclient.New(httpclient.Config{
		Host:          "127.0.0.1",
		Credential:    cred,
		ServicesURL:   server.URL,
		PairingURL:    server.URL,
		PublicInfoURL: server.URL,
	})
	require.NoError(t, err)

	if dispatch == nil {
		dispatch = func(model.Notification) {}
	}
	driver := New(Config{
		Client:           client,
		Dispatch:         dispatch,
		BridgeID:         "test-bridge",
		WaitSeconds:      1,
		ReadTimeout:      2 * time.Second,
		RetryDelay:       20 * time.Millisecond,
		ResubscribeDelay: 20 * time.Millisecond,
	})
	return driver, server
}

func TestDriver_SubscribeAndDispatch(t *testing.T) {
	batch := `{"result":[
		{"path":"/devices/dev-1/services/PowerSwitch","@type":"DeviceServiceData","id":"PowerSwitch","state":{"@type":"powerSwitchState","switchState":"ON"},"deviceId":"dev-1"},
		{"path":"/devices/dev-1/services/PowerSwitch","@type":"DeviceServiceData","id":"PowerSwitch","state":{"@type":"powerSwitchState","switchState":"OFF"},"deviceId":"dev-1"},
		{"path":"/devices/dev-2/services/ShutterContact","@type":"DeviceServiceData","id":"ShutterContact","state":{"@type":"shutterContactState","value":"OPEN"},"deviceId":"dev-2"}
	],"jsonrpc":"2.0"}`
	controller := &rpcController{pollResponses: []string{batch}}

	var mu sync.Mutex
	var received []model.Notification
	driver, _ := newTestDriver(t, controller, func(n model.Notification) {
		mu.Lock()
		received = append(received, n)
		mu.Unlock()
	})

	require.NoError(t, driver.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 3
	}, 2*time.Second, 10*time.Millisecond)

	driver.Stop(context.Background())

	// Per-device ordering: dev-1's ON precedes its OFF.
	mu.Lock()
	defer mu.Unlock()
	var dev1 []string
	for _, n := range received {
		if n.DeviceID == "dev-1" {
			var state struct {
				SwitchState string `json:"switchState"`
			}
			require.NoError(t, json.Unmarshal(n.State, &state))
			dev1 = append(dev1, state.SwitchState)
		}
	}
	assert.Equal(t, []string{"ON", "OFF"}, dev1)
}

func TestDriver_SingleOutstandingPoll(t *testing.T) {
	controller := &rpcController{pollResponses: []string{
		`{"result":[],"jsonrpc":"2.0"}`,
		`{"result":[],"jsonrpc":"2.0"}`,
		`{"result":[],"jsonrpc":"2.0"}`,
	}}
	driver, _ := newTestDriver(t, controller, nil)

	require.NoError(t, driver.Start(context.Background()))
	require.Eventually(t, func() bool {
		methods := controller.recordedMethods()
		polls := 0
		for _, m := range methods {
			if m == model.MethodLongPoll {
				polls++
			}
		}
		return polls >= 3
	}, 2*time.Second, 10*time.Millisecond)

	driver.Stop(context.Background())

	controller.mu.Lock()
	defer controller.mu.Unlock()
	assert.Equal(t, 1, controller.maxFlight, "driver must never have two outstanding requests")
}

func TestDriver_ResubscribeOnInvalidation(t *testing.T) {
	controller := &rpcController{pollResponses: []string{
		`{"jsonrpc":"2.0","error":{"code":300,"message":"WRONG_SESSION"}}`,
		`{"result":[],"jsonrpc":"2.0"}`,
	}}
	driver, _ := newTestDriver(t, controller, nil)

	start := time.Now()
	require.NoError(t, driver.Start(context.Background()))
	require.Eventually(t, func() bool {
		subs := 0
		for _, m := range controller.recordedMethods() {
			if m == model.MethodSubscribe {
				subs++
			}
		}
		return subs >= 2
	}, 2*time.Second, 5*time.Millisecond)
	elapsed := time.Since(start)

	driver.Stop(context.Background())

	// After the code-300 response the next outbound request must be a
	// subscribe with no poll in between, and without a backoff delay.
	methods := controller.recordedMethods()
	var afterError []string
	for i, m := range methods {
		if i > 0 && methods[i-1] == model.MethodLongPoll {
			afterError = append(afterError, m)
		}
	}
	require.NotEmpty(t, afterError)
	assert.Equal(t, model.MethodSubscribe, afterError[0])
	assert.Less(t, elapsed, 1*time.Second, "invalidation must resubscribe without backoff")
}

func TestDriver_BackoffOnServerError(t *testing.T) {
	controller := &rpcController{pollResponses: []string{
		`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal"}}`,
		`{"result":[],"jsonrpc":"2.0"}`,
	}}
	driver, _ := newTestDriver(t, controller, nil)

	require.NoError(t, driver.Start(context.Background()))
	require.Eventually(t, func() bool {
		subs := 0
		for _, m := range controller.recordedMethods() {
			if m == model.MethodSubscribe {
				subs++
			}
		}
		return subs >= 2
	}, 2*time.Second, 5*time.Millisecond)

	driver.Stop(context.Background())
	assert.Equal(t, StateTerminated, driver.State())
}

func TestDriver_ShutdownDuringPoll(t *testing.T) {
	// No scripted responses: the first poll blocks server-side.
	controller := &rpcController{}
	driver, _ := newTestDriver(t, controller, nil)

	require.NoError(t, driver.Start(context.Background()))
	require.Eventually(t, func() bool {
		for _, m := range controller.recordedMethods() {
			if m == model.MethodLongPoll {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	driver.Stop(context.Background())
	assert.Equal(t, StateTerminated, driver.State())

	// No further poll may be scheduled after termination.
	before := len(controller.recordedMethods())
	time.Sleep(100 * time.Millisecond)
	after := controller.recordedMethods()
	for _, m := range after[before:] {
		assert.Equal(t, model.MethodUnsubscribe, m, "only the best-effort unsubscribe may follow shutdown")
	}
}

func TestDriver_StartAfterStop(t *testing.T) {
	controller := &rpcController{}
	driver, _ := newTestDriver(t, controller, nil)

	require.NoError(t, driver.Start(context.Background()))
	driver.Stop(context.Background())

	assert.ErrorIs(t, driver.Start(context.Background()), ErrTerminated)
}
