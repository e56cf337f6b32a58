// Package app wires custodia's dependencies for the CLI.
//
// LoadConfig reads config.yaml and applies CUSTODIA_* environment overrides.
// NewWire builds the record store for the configured backend (sealed with the
// storage secret), the key service, signer, lockout policy, gate, wallet API
// client and provisioning flow, exposing them via the Wire struct.
package app
