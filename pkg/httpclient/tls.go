package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
)

// pinVerifier validates the controller's certificate against a pinned
// copy. When nothing is pinned yet the first certificate seen is accepted
// and recorded, which is the window right after pairing completes.
type pinVerifier struct {
	mu     sync.Mutex
	pinned *x509.Certificate
	onPin  func(*x509.Certificate) error
}

func newPinVerifier(pinned *x509.Certificate, onPin func(*x509.Certificate) error) *pinVerifier {
	return &pinVerifier{pinned: pinned, onPin: onPin}
}

// verify is used as tls.Config.VerifyPeerCertificate. The controller's
// certificate is self-signed, so chain building is pointless; identity is
// byte equality with the pinned certificate.
func (v *pinVerifier) verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("no certificates presented")
	}

	peer, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.pinned == nil {
		if v.onPin != nil {
			if err := v.onPin(peer); err != nil {
				return fmt.Errorf("pinning server certificate: %w", err)
			}
		}
		v.pinned = peer
		return nil
	}

	if !peer.Equal(v.pinned) {
		return &PinMismatchError{Subject: peer.Subject.CommonName}
	}
	return nil
}

// newOperationalTLSConfig builds the mutual-TLS profile: client
// certificate presented, server identity checked by pin.
//
// InsecureSkipVerify disables Go's chain and hostname verification only;
// the pin verifier performs the actual identity check.
func newOperationalTLSConfig(clientCert tls.Certificate, verifier *pinVerifier) *tls.Config {
	return &tls.Config{
		MinVersion:            tls.VersionTLS12,
		Certificates:          []tls.Certificate{clientCert},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifier.verify,
	}
}

// newPairingTLSConfig builds the pairing profile: no client certificate,
// any server certificate accepted. Pairing precedes all trust.
func newPairingTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
	}
}
