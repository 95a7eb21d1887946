// Package services contains the service plug-ins: the translation layer
// between controller-side state documents and abstract channels.
//
// Each plug-in covers one controller service (PowerSwitch,
// TemperatureLevel, ShutterControl, ...). A plug-in knows the service's
// wire name, its state document schema, how to project a state document to
// channel updates, and how to encode a channel command into a partial
// state document to write back. State documents are validated against the
// schema before any channel update is emitted.
package services
