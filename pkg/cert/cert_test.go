package cert

import (
	"testing"
	"time"
)

func TestGenerateKeyPair(t *testing.T) {
	key, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}

	if key == nil {
		t.Fatal("key should not be nil")
	}
	if key.Curve.Params().Name != "P-256" {
		t.Errorf("Expected P-256 curve, got %s", key.Curve.Params().Name)
	}
}

func TestNewCredential(t *testing.T) {
	cred, err := NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}

	if cred.Certificate == nil {
		t.Fatal("Certificate should not be nil")
	}
	if cred.PrivateKey == nil {
		t.Fatal("PrivateKey should not be nil")
	}

	if got := cred.Certificate.Subject.CommonName; got != ClientCN {
		t.Errorf("CommonName = %q, want %q", got, ClientCN)
	}
	if !cred.Certificate.NotAfter.After(time.Now().Add(9 * 365 * 24 * time.Hour)) {
		t.Errorf("certificate expires too soon: %v", cred.Certificate.NotAfter)
	}

	// Self-signed: issuer equals subject
	if cred.Certificate.Issuer.CommonName != ClientCN {
		t.Errorf("Issuer CommonName = %q, want %q", cred.Certificate.Issuer.CommonName, ClientCN)
	}
}

func TestCredentialTLSCertificate(t *testing.T) {
	cred, err := NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}

	tlsCert := cred.TLSCertificate()
	if len(tlsCert.Certificate) != 1 {
		t.Fatalf("len(Certificate) = %d, want 1", len(tlsCert.Certificate))
	}
	if tlsCert.Leaf == nil {
		t.Error("Leaf should be set")
	}

	var nilCred *Credential
	if got := nilCred.TLSCertificate(); len(got.Certificate) != 0 {
		t.Error("nil credential should produce empty tls.Certificate")
	}
}

func TestIdentityKey(t *testing.T) {
	tests := []struct {
		id   Identity
		want string
	}{
		{Identity{IPAddress: "192.168.1.2", ControllerID: "64-DA-A0-02-14-9B"}, "64-da-a0-02-14-9b"},
		{Identity{IPAddress: "192.168.1.2"}, "192.168.1.2"},
		{Identity{ControllerID: "hdm:Controller A"}, "hdm-controller-a"},
	}

	for _, tt := range tests {
		if got := tt.id.Key(); got != tt.want {
			t.Errorf("Identity%+v.Key() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPEMRoundTrip(t *testing.T) {
	cred, err := NewCredential()
	if err != nil {
		t.Fatalf("NewCredential() error = %v", err)
	}

	certPEM := EncodeCertPEM(cred.Certificate)
	gotCert, err := DecodeCertPEM(certPEM)
	if err != nil {
		t.Fatalf("DecodeCertPEM() error = %v", err)
	}
	if !gotCert.Equal(cred.Certificate) {
		t.Error("certificate changed across PEM round trip")
	}

	keyPEM, err := EncodeKeyPEM(cred.PrivateKey)
	if err != nil {
		t.Fatalf("EncodeKeyPEM() error = %v", err)
	}
	gotKey, err := DecodeKeyPEM(keyPEM)
	if err != nil {
		t.Fatalf("DecodeKeyPEM() error = %v", err)
	}
	if !gotKey.Equal(cred.PrivateKey) {
		t.Error("key changed across PEM round trip")
	}
}

func TestDecodeCertPEMInvalid(t *testing.T) {
	if _, err := DecodeCertPEM([]byte("not pem")); err == nil {
		t.Error("DecodeCertPEM() should fail on garbage")
	}
	if _, err := DecodeKeyPEM([]byte("not pem")); err == nil {
		t.Error("DecodeKeyPEM() should fail on garbage")
	}
}
