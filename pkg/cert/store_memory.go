package cert

import (
	"crypto/x509"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// This is primarily useful for testing.
type MemoryStore struct {
	mu          sync.Mutex
	credentials map[string]*Credential
	serverCerts map[string]*x509.Certificate
}

// NewMemoryStore creates a new in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*Credential),
		serverCerts: make(map[string]*x509.Certificate),
	}
}

// Load returns the credential for the identity, or ErrNotFound.
func (s *MemoryStore) Load(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[id.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	return cred, nil
}

// Create generates a credential for the identity, or returns the existing one.
func (s *MemoryStore) Create(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred, ok := s.credentials[id.Key()]; ok {
		return cred, nil
	}

	cred, err := NewCredential()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	s.credentials[id.Key()] = cred
	return cred, nil
}

// Rotate discards any existing credential and generates a new one.
func (s *MemoryStore) Rotate(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := NewCredential()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	s.credentials[id.Key()] = cred
	delete(s.serverCerts, id.Key())
	return cred, nil
}

// PinnedServerCert returns the controller certificate pinned for the identity.
func (s *MemoryStore) PinnedServerCert(id Identity) (*x509.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	certificate, ok := s.serverCerts[id.Key()]
	if !ok {
		return nil, ErrNotFound
	}
	return certificate, nil
}

// PinServerCert records the controller certificate for the identity.
func (s *MemoryStore) PinServerCert(id Identity, certificate *x509.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.serverCerts[id.Key()] = certificate
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)
