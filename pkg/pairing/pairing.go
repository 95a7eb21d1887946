// Package pairing enrolls the gateway's client certificate with a
// controller. Enrollment is a one-time handshake: the certificate is
// posted to the pairing port, authenticated by the system password printed
// on the controller. Once the controller knows the certificate, mutual TLS
// works and pairing becomes a no-op.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/httpclient"
	"github.com/shc-gateway/shc-go/pkg/log"
)

// Pairing errors.
var (
	// ErrRequiresPassword indicates the controller does not know this
	// client yet and no system password was supplied.
	ErrRequiresPassword = errors.New("pairing requires system password")

	// ErrFailed indicates the controller refused the pairing attempt.
	// Terminal unless the user supplies a new system password.
	ErrFailed = errors.New("pairing failed")
)

// Driver performs first-contact enrollment against one controller.
type Driver struct {
	client     *httpclient.Client
	credential *cert.Credential
	logger     log.Logger
	bridgeID   string

	// settleDelay is how long to wait after enrollment before the first
	// probe; the controller needs a moment to activate the new client.
	settleDelay time.Duration
}

// NewDriver creates a pairing driver for one controller connection.
func NewDriver(client *httpclient.Client, credential *cert.Credential, logger log.Logger, bridgeID string) *Driver {
	return &Driver{
		client:      client,
		credential:  credential,
		logger:      log.OrNoop(logger),
		bridgeID:    bridgeID,
		settleDelay: 500 * time.Millisecond,
	}
}

// Pair ensures the client certificate is accepted by the controller.
// On an already-paired controller it performs no write and returns nil.
//
// systemPassword is needed only when the controller does not know the
// certificate yet; pass the empty string when unknown and retry with the
// password on ErrRequiresPassword.
func (d *Driver) Pair(ctx context.Context, systemPassword string) error {
	// A mutual-TLS probe tells us whether the controller already trusts
	// the certificate.
	err := d.probe(ctx)
	if err == nil {
		d.logEvent("already paired", nil)
		return nil
	}
	if !needsPairing(err) {
		return fmt.Errorf("pairing probe: %w", err)
	}

	if systemPassword == "" {
		d.logEvent("not paired, no password supplied", ErrRequiresPassword)
		return ErrRequiresPassword
	}

	certPEM := cert.EncodeCertPEM(d.credential.Certificate)
	status, err := d.client.PairClient(ctx, certPEM, systemPassword)
	if err != nil && status == 0 {
		d.logEvent("posting client certificate", err)
		return fmt.Errorf("posting client certificate: %w", err)
	}
	if status != http.StatusCreated {
		d.logEvent(fmt.Sprintf("controller refused pairing with status %d", status), err)
		if status >= 400 && status < 500 {
			return fmt.Errorf("%w: controller returned status %d", ErrFailed, status)
		}
		return fmt.Errorf("pairing request: %w", err)
	}

	select {
	case <-time.After(d.settleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := d.probe(ctx); err != nil {
		d.logEvent("probe after pairing", err)
		return fmt.Errorf("%w: probe after pairing: %v", ErrFailed, err)
	}

	d.logEvent("pairing complete", nil)
	return nil
}

// probe issues a request that requires mutual TLS. The rooms endpoint is
// the cheapest authenticated read the controller offers.
func (d *Driver) probe(ctx context.Context) error {
	_, err := d.client.Request(ctx, http.MethodGet, "/smarthome/rooms", nil)
	return err
}

// needsPairing reports whether the probe failure means the controller does
// not know this client. The controller rejects unknown clients at the TLS
// layer; some firmware versions answer 401 instead.
func needsPairing(err error) bool {
	if errors.Is(err, httpclient.ErrTLS) {
		return true
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden
	}
	return false
}

func (d *Driver) logEvent(step string, err error) {
	event := log.Event{
		Timestamp: time.Now(),
		BridgeID:  d.bridgeID,
		Direction: log.DirectionOut,
		Category:  log.CategoryPairing,
		Pairing:   &log.PairingEvent{Step: step},
	}
	if err != nil {
		event.Error = &log.ErrorEventData{Message: err.Error(), Context: "pairing"}
	}
	d.logger.Log(event)
}
