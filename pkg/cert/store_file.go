package cert

import (
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File name constants for credential storage.
const (
	clientCertFile = "client.pem"
	clientKeyFile  = "client.key"
	serverCertFile = "server.pem"
	metaFile       = "meta.json"
)

// FileStore is a file-based implementation of the Store interface.
// Each controller gets a directory under baseDir/controllers/<key> holding
// the client certificate and key as PEM files, the pinned server
// certificate, and JSON metadata.
type FileStore struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileStore creates a new file-based credential store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// credentialMeta is the JSON metadata stored alongside the PEM files.
type credentialMeta struct {
	ControllerID string    `json:"controller_id,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *FileStore) dir(id Identity) string {
	return filepath.Join(s.baseDir, "controllers", id.Key())
}

// Load returns the credential for the identity, or ErrNotFound.
func (s *FileStore) Load(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

// load reads the credential without locking; callers hold s.mu.
func (s *FileStore) load(id Identity) (*Credential, error) {
	dir := s.dir(id)
	if _, err := os.Stat(filepath.Join(dir, clientCertFile)); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	certificate, err := ReadCertFile(filepath.Join(dir, clientCertFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read certificate: %v", ErrStorage, err)
	}
	key, err := ReadKeyFile(filepath.Join(dir, clientKeyFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read key: %v", ErrStorage, err)
	}

	cred := &Credential{
		Certificate: certificate,
		PrivateKey:  key,
		CreatedAt:   certificate.NotBefore,
	}

	// Metadata is advisory; a missing file does not fail the load.
	if data, err := os.ReadFile(filepath.Join(dir, metaFile)); err == nil {
		var meta credentialMeta
		if json.Unmarshal(data, &meta) == nil && !meta.CreatedAt.IsZero() {
			cred.CreatedAt = meta.CreatedAt
		}
	}

	return cred, nil
}

// Create generates and persists a credential for the identity, or returns
// the existing one. Safe under concurrent callers for the same identity.
func (s *FileStore) Create(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.load(id); err == nil {
		return existing, nil
	} else if err != ErrNotFound {
		return nil, err
	}

	return s.generate(id)
}

// Rotate discards any existing credential and generates a new one.
func (s *FileStore) Rotate(id Identity) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir(id)); err != nil {
		return nil, fmt.Errorf("%w: remove old credential: %v", ErrStorage, err)
	}
	return s.generate(id)
}

// generate creates and persists a fresh credential; callers hold s.mu.
func (s *FileStore) generate(id Identity) (*Credential, error) {
	cred, err := NewCredential()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %v", ErrStorage, err)
	}
	if err := WriteCertFile(filepath.Join(dir, clientCertFile), cred.Certificate); err != nil {
		return nil, fmt.Errorf("%w: write certificate: %v", ErrStorage, err)
	}
	if err := WriteKeyFile(filepath.Join(dir, clientKeyFile), cred.PrivateKey); err != nil {
		return nil, fmt.Errorf("%w: write key: %v", ErrStorage, err)
	}

	meta := credentialMeta{
		ControllerID: id.ControllerID,
		IPAddress:    id.IPAddress,
		CreatedAt:    cred.CreatedAt,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", ErrStorage, err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), data, 0644); err != nil {
		return nil, fmt.Errorf("%w: write metadata: %v", ErrStorage, err)
	}

	return cred, nil
}

// PinnedServerCert returns the controller certificate pinned for the identity.
func (s *FileStore) PinnedServerCert(id Identity) (*x509.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir(id), serverCertFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	certificate, err := ReadCertFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read server certificate: %v", ErrStorage, err)
	}
	return certificate, nil
}

// PinServerCert records the controller certificate for the identity.
func (s *FileStore) PinServerCert(id Identity, certificate *x509.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrStorage, err)
	}
	if err := WriteCertFile(filepath.Join(dir, serverCertFile), certificate); err != nil {
		return fmt.Errorf("%w: write server certificate: %v", ErrStorage, err)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
