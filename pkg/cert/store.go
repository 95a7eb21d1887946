package cert

import (
	"crypto/x509"
	"errors"
)

// Store errors.
var (
	// ErrNotFound indicates no credential exists for the identity.
	ErrNotFound = errors.New("credential not found")

	// ErrStorage indicates the backing storage failed.
	ErrStorage = errors.New("credential storage failure")

	// ErrCrypto indicates key or certificate generation failed.
	ErrCrypto = errors.New("credential generation failure")
)

// Store persists one client credential per controller identity.
// Implementations must be safe for concurrent access: a second Create for
// the same identity during the first's execution either blocks or returns
// the same credential; two credentials are never persisted for one identity.
//
// The store also keeps the controller's self-signed server certificate
// pinned on first use, as part of the per-controller credential record.
type Store interface {
	// Load returns the credential for the identity.
	// Returns ErrNotFound if none exists.
	Load(id Identity) (*Credential, error)

	// Create generates, persists and returns a fresh credential for the
	// identity. If one already exists it is returned unchanged.
	Create(id Identity) (*Credential, error)

	// Rotate discards any existing credential and generates a new one.
	Rotate(id Identity) (*Credential, error)

	// PinnedServerCert returns the controller certificate pinned for the
	// identity. Returns ErrNotFound if none is pinned yet.
	PinnedServerCert(id Identity) (*x509.Certificate, error)

	// PinServerCert records the controller certificate for the identity.
	// Overwrites any previously pinned certificate.
	PinServerCert(id Identity, cert *x509.Certificate) error
}
