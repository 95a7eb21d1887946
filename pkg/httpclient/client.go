package httpclient

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/log"
)

// Controller ports.
const (
	// PortPairing serves client enrollment. Accepts any client.
	PortPairing = 8443

	// PortServices serves rooms, devices, service state and JSON-RPC.
	// Requires mutual TLS.
	PortServices = 8444

	// PortPublicInfo serves the unauthenticated public information document.
	PortPublicInfo = 8446
)

// DefaultRequestTimeout bounds requests whose context carries no deadline.
// Long polls pass their own, longer deadline.
const DefaultRequestTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// Host is the controller's IP address or hostname. Required unless all
	// three base URLs are set explicitly.
	Host string

	// Credential is the paired client credential. Required for operational
	// requests; pairing and public information work without it.
	Credential *cert.Credential

	// PinnedServerCert is the controller certificate recorded during a
	// previous run, nil on first contact.
	PinnedServerCert *x509.Certificate

	// OnPinServerCert is called once when the first controller certificate
	// is accepted, so the caller can persist it.
	OnPinServerCert func(*x509.Certificate) error

	// GatewayID is the controller's MAC-derived identifier, carried in the
	// Gateway-ID header. May be set later via SetGatewayID.
	GatewayID string

	// Logger receives one event per exchange. Nil disables logging.
	Logger log.Logger

	// BridgeID tags log events with the owning bridge run.
	BridgeID string

	// Base URL overrides for tests; derived from Host when empty.
	ServicesURL   string
	PairingURL    string
	PublicInfoURL string
}

// Client issues requests to one controller. Safe for concurrent use; the
// long-poll loop and command dispatch share one instance because the
// controller limits distinct client identities.
type Client struct {
	host          string
	servicesURL   string
	pairingURL    string
	publicInfoURL string

	operational *http.Client
	pairing     *http.Client

	logger   log.Logger
	bridgeID string

	mu        sync.RWMutex
	gatewayID string
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" && (cfg.ServicesURL == "" || cfg.PairingURL == "" || cfg.PublicInfoURL == "") {
		return nil, fmt.Errorf("controller host is required")
	}

	c := &Client{
		host:          cfg.Host,
		servicesURL:   cfg.ServicesURL,
		pairingURL:    cfg.PairingURL,
		publicInfoURL: cfg.PublicInfoURL,
		logger:        log.OrNoop(cfg.Logger),
		bridgeID:      cfg.BridgeID,
		gatewayID:     cfg.GatewayID,
	}
	if c.servicesURL == "" {
		c.servicesURL = fmt.Sprintf("https://%s:%d", cfg.Host, PortServices)
	}
	if c.pairingURL == "" {
		c.pairingURL = fmt.Sprintf("https://%s:%d", cfg.Host, PortPairing)
	}
	if c.publicInfoURL == "" {
		c.publicInfoURL = fmt.Sprintf("https://%s:%d", cfg.Host, PortPublicInfo)
	}

	verifier := newPinVerifier(cfg.PinnedServerCert, cfg.OnPinServerCert)
	c.operational = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: newOperationalTLSConfig(cfg.Credential.TLSCertificate(), verifier),
		},
	}
	c.pairing = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: newPairingTLSConfig(),
		},
	}

	return c, nil
}

// SetGatewayID records the controller identifier carried in the Gateway-ID
// header of every operational request.
func (c *Client) SetGatewayID(id string) {
	c.mu.Lock()
	c.gatewayID = id
	c.mu.Unlock()
}

// GatewayID returns the currently configured controller identifier.
func (c *Client) GatewayID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gatewayID
}

// Request issues an operational request against the services port. body may
// be nil. Returns the response body on any HTTP response; non-2xx statuses
// additionally return a *StatusError. Failures below HTTP return
// ErrTransport, ErrTimeout or ErrTLS.
func (c *Client) Request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	headers := http.Header{
		"Content-Type": []string{"application/json"},
		"Accept":       []string{"application/json"},
	}
	if id := c.GatewayID(); id != "" {
		headers.Set("Gateway-ID", id)
	}
	return c.do(ctx, c.operational, method, c.servicesURL+path, headers, body, log.CategoryHTTP)
}

// PairingRequest issues a request against the pairing port using the
// pairing trust profile.
func (c *Client) PairingRequest(ctx context.Context, method, path string, headers http.Header, body []byte) ([]byte, error) {
	if headers == nil {
		headers = http.Header{}
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	return c.do(ctx, c.pairing, method, c.pairingURL+path, headers, body, log.CategoryPairing)
}

// publicRequest issues an unauthenticated request against the public
// information port.
func (c *Client) publicRequest(ctx context.Context, path string) ([]byte, error) {
	headers := http.Header{"Accept": []string{"application/json"}}
	return c.do(ctx, c.pairing, http.MethodGet, c.publicInfoURL+path, headers, nil, log.CategoryHTTP)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, url string, headers http.Header, body []byte, category log.Category) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		classified := classify(err)
		c.logExchange(category, method, req.URL.Path, 0, time.Since(start), 0)
		return nil, classified
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logExchange(category, method, req.URL.Path, resp.StatusCode, time.Since(start), 0)
		return nil, classify(err)
	}

	c.logExchange(category, method, req.URL.Path, resp.StatusCode, time.Since(start), len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return respBody, &StatusError{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func (c *Client) logExchange(category log.Category, method, path string, status int, duration time.Duration, size int) {
	c.logger.Log(log.Event{
		Timestamp:      time.Now(),
		BridgeID:       c.bridgeID,
		Direction:      log.DirectionOut,
		Category:       category,
		ControllerAddr: c.host,
		HTTP: &log.HTTPEvent{
			Method:   method,
			Path:     path,
			Status:   status,
			Duration: duration,
			BodySize: size,
		},
	})
}
