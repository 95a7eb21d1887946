package httpclient

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/model"
)

func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cred, err := cert.NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	client, err := New(Config{
		Host:          "127.0.0.1",
		Credential:    cred,
		GatewayID:     "64-da-a0-02-14-9b",
		ServicesURL:   server.URL,
		PairingURL:    server.URL,
		PublicInfoURL: server.URL,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := testClient(t, server)
	if _, err := client.Request(context.Background(), http.MethodGet, "/smarthome/rooms", nil); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	if got.Get("Gateway-ID") != "64-da-a0-02-14-9b" {
		t.Errorf("Gateway-ID = %q, want controller id", got.Get("Gateway-ID"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got.Get("Content-Type"))
	}
	if got.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q, want application/json", got.Get("Accept"))
	}
}

func TestRequestStatusError(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such resource", http.StatusNotFound)
	}))
	defer server.Close()

	client := testClient(t, server)
	_, err := client.Request(context.Background(), http.MethodGet, "/nope", nil)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Request() error = %v, want *StatusError", err)
	}
	if statusErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", statusErr.Status)
	}
}

func TestRequestTimeout(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := testClient(t, server)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Request(ctx, http.MethodGet, "/smarthome/rooms", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Request() error = %v, want ErrTimeout", err)
	}
}

func TestRequestTransportFail(t *testing.T) {
	cred, err := cert.NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}
	client, err := New(Config{
		Host:       "127.0.0.1",
		Credential: cred,
		// Reserved port nobody listens on.
		ServicesURL:   "https://127.0.0.1:1",
		PairingURL:    "https://127.0.0.1:1",
		PublicInfoURL: "https://127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Request(context.Background(), http.MethodGet, "/smarthome/rooms", nil)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Request() error = %v, want ErrTransport", err)
	}
}

func TestServerCertPinning(t *testing.T) {
	t.Run("PinOnFirstUse", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer server.Close()

		cred, err := cert.NewCredential()
		if err != nil {
			t.Fatalf("NewCredential() error = %v", err)
		}

		var pinned *x509.Certificate
		client, err := New(Config{
			Host:       "127.0.0.1",
			Credential: cred,
			OnPinServerCert: func(c *x509.Certificate) error {
				pinned = c
				return nil
			},
			ServicesURL:   server.URL,
			PairingURL:    server.URL,
			PublicInfoURL: server.URL,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		if _, err := client.Request(context.Background(), http.MethodGet, "/smarthome/rooms", nil); err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		if pinned == nil {
			t.Fatal("first use should have pinned the server certificate")
		}
		if !pinned.Equal(server.Certificate()) {
			t.Error("pinned certificate is not the server's")
		}
	})

	t.Run("MismatchRejected", func(t *testing.T) {
		server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer server.Close()

		cred, err := cert.NewCredential()
		if err != nil {
			t.Fatalf("NewCredential() error = %v", err)
		}
		other, err := cert.NewCredential()
		if err != nil {
			t.Fatalf("NewCredential() error = %v", err)
		}

		client, err := New(Config{
			Host:             "127.0.0.1",
			Credential:       cred,
			PinnedServerCert: other.Certificate,
			ServicesURL:      server.URL,
			PairingURL:       server.URL,
			PublicInfoURL:    server.URL,
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		_, err = client.Request(context.Background(), http.MethodGet, "/smarthome/rooms", nil)
		if !errors.Is(err, ErrTLS) {
			t.Errorf("Request() error = %v, want ErrTLS", err)
		}
	})
}

func TestTypedEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/smarthome/public/information", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"apiVersions":["2.1"],"macAddress":"64-da-a0-02-14-9b","shcIpAddress":"192.168.1.2"}`))
	})
	mux.HandleFunc("/smarthome/rooms", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"@type":"room","id":"hz_1","name":"Living Room"}]`))
	})
	mux.HandleFunc("/smarthome/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"hdm:HomeMaticIP:3014","deviceModel":"PSM","roomId":"hz_1","deviceServiceIds":["PowerSwitch"],"status":"AVAILABLE"}]`))
	})
	mux.HandleFunc("/smarthome/devices/hdm:HomeMaticIP:3014/services/PowerSwitch/state", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"@type":"powerSwitchState","switchState":"ON"}`))
		case http.MethodPut:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	server := httptest.NewTLSServer(mux)
	defer server.Close()

	client := testClient(t, server)
	ctx := context.Background()

	t.Run("PublicInformation", func(t *testing.T) {
		info, err := client.PublicInformation(ctx)
		if err != nil {
			t.Fatalf("PublicInformation() error = %v", err)
		}
		if info.ShcIPAddress != "192.168.1.2" {
			t.Errorf("ShcIPAddress = %q", info.ShcIPAddress)
		}
		if info.GatewayID("") != "64-da-a0-02-14-9b" {
			t.Errorf("GatewayID = %q", info.GatewayID(""))
		}
	})

	t.Run("Rooms", func(t *testing.T) {
		rooms, err := client.Rooms(ctx)
		if err != nil {
			t.Fatalf("Rooms() error = %v", err)
		}
		if len(rooms) != 1 || rooms[0].Name != "Living Room" {
			t.Errorf("Rooms() = %+v", rooms)
		}
	})

	t.Run("Devices", func(t *testing.T) {
		devices, err := client.Devices(ctx)
		if err != nil {
			t.Fatalf("Devices() error = %v", err)
		}
		if len(devices) != 1 || devices[0].DeviceModel != "PSM" {
			t.Fatalf("Devices() = %+v", devices)
		}
		if !devices[0].HasService("PowerSwitch") {
			t.Error("device should have PowerSwitch service")
		}
	})

	t.Run("ServiceState", func(t *testing.T) {
		state, err := client.GetServiceState(ctx, "hdm:HomeMaticIP:3014", "PowerSwitch")
		if err != nil {
			t.Fatalf("GetServiceState() error = %v", err)
		}
		var doc struct {
			SwitchState string `json:"switchState"`
		}
		if err := json.Unmarshal(state, &doc); err != nil {
			t.Fatalf("decoding state: %v", err)
		}
		if doc.SwitchState != "ON" {
			t.Errorf("switchState = %q", doc.SwitchState)
		}

		err = client.PutServiceState(ctx, "hdm:HomeMaticIP:3014", "PowerSwitch",
			json.RawMessage(`{"@type":"powerSwitchState","switchState":"OFF"}`))
		if err != nil {
			t.Errorf("PutServiceState() error = %v", err)
		}
	})
}

func TestRPC(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/remote/json-rpc" {
			t.Errorf("path = %q, want /remote/json-rpc", r.URL.Path)
		}
		var req model.RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Method != model.MethodSubscribe {
			t.Errorf("method = %q", req.Method)
		}
		w.Write([]byte(`{"result":"e71k823d0-16","jsonrpc":"2.0"}`))
	}))
	defer server.Close()

	client := testClient(t, server)
	body, err := client.RPC(context.Background(), model.NewSubscribeRequest())
	if err != nil {
		t.Fatalf("RPC() error = %v", err)
	}

	var result model.SubscribeResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Result != "e71k823d0-16" {
		t.Errorf("subscription id = %q", result.Result)
	}
}

func TestPairClient(t *testing.T) {
	const password = "1234567890123456"

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/smarthome/clients" {
			t.Errorf("path = %q, want /smarthome/clients", r.URL.Path)
		}
		wantPW := base64.StdEncoding.EncodeToString([]byte(password))
		if got := r.Header.Get("Systempassword"); got != wantPW {
			t.Errorf("Systempassword = %q, want %q", got, wantPW)
		}
		if r.TLS != nil && len(r.TLS.PeerCertificates) != 0 {
			t.Error("pairing request must not present a client certificate")
		}

		var body struct {
			Type        string `json:"@type"`
			Certificate string `json:"certificate"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body.Type != "client" {
			t.Errorf("@type = %q, want client", body.Type)
		}
		if body.Certificate == "" {
			t.Error("certificate missing from pairing body")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := testClient(t, server)
	cred, err := cert.NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}

	status, err := client.PairClient(context.Background(), cert.EncodeCertPEM(cred.Certificate), password)
	if err != nil {
		t.Fatalf("PairClient() error = %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("status = %d, want 201", status)
	}
}
