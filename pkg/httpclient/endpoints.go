package httpclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shc-gateway/shc-go/pkg/model"
)

// PublicInformation fetches the unauthenticated controller document from
// the public information port.
func (c *Client) PublicInformation(ctx context.Context) (*model.PublicInformation, error) {
	body, err := c.publicRequest(ctx, "/smarthome/public/information")
	if err != nil {
		return nil, err
	}
	var info model.PublicInformation
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding public information: %w", err)
	}
	return &info, nil
}

// Rooms fetches the room snapshot.
func (c *Client) Rooms(ctx context.Context) ([]model.Room, error) {
	body, err := c.Request(ctx, http.MethodGet, "/smarthome/rooms", nil)
	if err != nil {
		return nil, err
	}
	var rooms []model.Room
	if err := json.Unmarshal(body, &rooms); err != nil {
		return nil, fmt.Errorf("decoding rooms: %w", err)
	}
	return rooms, nil
}

// Devices fetches the device snapshot.
func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	body, err := c.Request(ctx, http.MethodGet, "/smarthome/devices", nil)
	if err != nil {
		return nil, err
	}
	var devices []model.Device
	if err := json.Unmarshal(body, &devices); err != nil {
		return nil, fmt.Errorf("decoding devices: %w", err)
	}
	return devices, nil
}

// GetServiceState fetches the state document of one service of one device.
func (c *Client) GetServiceState(ctx context.Context, deviceID, service string) (json.RawMessage, error) {
	path := fmt.Sprintf("/smarthome/devices/%s/services/%s/state", deviceID, service)
	return c.Request(ctx, http.MethodGet, path, nil)
}

// PutServiceState writes a state document to one service of one device.
// Any 2xx response is success.
func (c *Client) PutServiceState(ctx context.Context, deviceID, service string, state json.RawMessage) error {
	path := fmt.Sprintf("/smarthome/devices/%s/services/%s/state", deviceID, service)
	_, err := c.Request(ctx, http.MethodPut, path, state)
	return err
}

// RPC posts a JSON-RPC request to the remote endpoint and returns the raw
// response body. Callers decode the result or error envelope themselves;
// the long-poll driver needs to distinguish batches from RPC errors.
func (c *Client) RPC(ctx context.Context, req model.RPCRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Method, err)
	}
	return c.Request(ctx, http.MethodPost, "/remote/json-rpc", body)
}

// pairBody is the enrollment document posted to the pairing endpoint.
type pairBody struct {
	Type        string `json:"@type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	PrimaryRole string `json:"primaryRole"`
	Certificate string `json:"certificate"`
}

// PairClient posts the PEM client certificate to the pairing endpoint,
// authenticated by the base64-encoded system password. Returns the HTTP
// status; 201 means the controller accepted the certificate.
func (c *Client) PairClient(ctx context.Context, certPEM []byte, systemPassword string) (int, error) {
	body, err := json.Marshal(pairBody{
		Type:        "client",
		ID:          "oss_" + c.GatewayID(),
		Name:        "OSS SHC Gateway",
		PrimaryRole: "ROLE_RESTRICTED_CLIENT",
		Certificate: string(certPEM),
	})
	if err != nil {
		return 0, fmt.Errorf("encoding pairing body: %w", err)
	}

	headers := http.Header{
		"Content-Type":   []string{"application/json"},
		"Systempassword": []string{base64.StdEncoding.EncodeToString([]byte(systemPassword))},
	}
	_, err = c.PairingRequest(ctx, http.MethodPost, "/smarthome/clients", headers, body)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return statusErr.Status, err
		}
		return 0, err
	}
	return http.StatusCreated, nil
}
