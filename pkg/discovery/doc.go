// Package discovery locates Smart Home Controllers on the local network.
//
// Controllers announce a plain _http._tcp mDNS service, so a browse alone
// cannot tell a controller from any other web server. Every candidate
// address is therefore confirmed by fetching the unauthenticated public
// information document on port 8446; the document's shcIpAddress is the
// canonical address reported to callers, even when the candidate was
// reached on a different interface.
package discovery
