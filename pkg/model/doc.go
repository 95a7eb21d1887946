// Package model defines the wire-level data model of the Smart Home
// Controller HTTPS API: rooms, devices, JSON-RPC envelopes for the long-poll
// channel, and the unauthenticated public information document.
//
// All types mirror the controller's JSON documents field for field. The
// controller tags most documents with an "@type" discriminator; types here
// keep that field so encoded documents round-trip unchanged.
package model
