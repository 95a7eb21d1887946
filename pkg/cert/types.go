package cert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"
)

// ClientCN is the subject common name of every client certificate this
// gateway generates. The controller shows it in its client list.
const ClientCN = "oss_shc_gateway"

// CredentialValidity is the validity period of generated client
// certificates. Long-lived: the credential is rotated only on explicit user
// action, never automatically.
const CredentialValidity = 10 * 365 * 24 * time.Hour

// Identity is the logical address of one controller. Immutable once created.
type Identity struct {
	// IPAddress is the controller's address on the local network.
	IPAddress string

	// ControllerID is the controller's MAC-derived identifier, when known.
	ControllerID string
}

// Key returns the storage key for this identity: the controller id when
// known, the IP address otherwise.
func (id Identity) Key() string {
	key := id.ControllerID
	if key == "" {
		key = id.IPAddress
	}
	return sanitizeKey(key)
}

// sanitizeKey makes an identity usable as a directory name.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(":", "-", "/", "-", "\\", "-", " ", "-")
	return strings.ToLower(r.Replace(key))
}

// Credential is a client certificate and private key pair for one
// controller. Created during pairing, persisted by the Store, presented by
// the HTTP client on every operational request.
type Credential struct {
	// Certificate is the self-signed X.509 client certificate.
	Certificate *x509.Certificate

	// PrivateKey is the certificate's ECDSA P-256 private key.
	PrivateKey *ecdsa.PrivateKey

	// CreatedAt is when the credential was generated.
	CreatedAt time.Time
}

// TLSCertificate converts the credential to a tls.Certificate for use in
// TLS connections.
func (c *Credential) TLSCertificate() tls.Certificate {
	if c == nil || c.Certificate == nil || c.PrivateKey == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{c.Certificate.Raw},
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Certificate,
	}
}
