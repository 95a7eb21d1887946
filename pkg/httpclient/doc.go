// Package httpclient issues HTTPS requests to a controller.
//
// Two TLS profiles exist. The operational profile presents the paired
// client certificate and validates the controller against its pinned
// certificate, pinning on first use right after pairing. The pairing
// profile presents no client certificate and accepts any server
// certificate, because pairing happens before any trust is established.
package httpclient
