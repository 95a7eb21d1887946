// Package cert manages the client credentials used to authenticate against
// a controller: ECDSA key pair generation, self-signed certificate creation,
// PEM persistence and pinning of the controller's own certificate.
package cert
