package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Request errors.
var (
	// ErrTransport indicates the request failed below HTTP: connection
	// refused, reset, DNS failure.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout indicates the request did not complete in time.
	ErrTimeout = errors.New("request timeout")

	// ErrTLS indicates the TLS handshake failed, including the controller
	// rejecting an unknown client certificate.
	ErrTLS = errors.New("TLS failure")
)

// StatusError reports a non-2xx HTTP response. The status is surfaced
// unchanged so callers can react to specific codes.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// classify maps a low-level request error to one of the exported
// sentinels, keeping the cause in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	// url.Error wraps everything the http package returns; unwrap so the
	// checks below see the cause.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}

	if isTLSError(err) {
		return fmt.Errorf("%w: %v", ErrTLS, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// isTLSError reports whether the error chain contains a TLS or
// certificate verification failure.
func isTLSError(err error) bool {
	var (
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		certInvalid  x509.CertificateInvalidError
		alertErr     tls.AlertError
		pinErr       *PinMismatchError
	)
	switch {
	case errors.As(err, &recordErr),
		errors.As(err, &verifyErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr),
		errors.As(err, &certInvalid),
		errors.As(err, &alertErr),
		errors.As(err, &pinErr):
		return true
	}
	return false
}

// PinMismatchError reports that the controller presented a certificate
// different from the one pinned during pairing.
type PinMismatchError struct {
	Subject string
}

func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("server certificate does not match pinned certificate (subject %q)", e.Subject)
}
