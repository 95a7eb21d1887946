// Package config loads the gateway configuration from YAML with
// environment variable overrides and validates it.
package config
