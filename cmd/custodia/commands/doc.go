// Package commands defines the custodia CLI and wires dependencies for subcommands.
//
// Commands
//
//   - passcode set   Set or change the device passcode
//   - unlock         Authenticate with the device passcode
//   - lockout        Show the lockout state; --watch counts down
//   - keys init      Create the signing key and register it with the wallet API
//   - keys show      Print the public key and fingerprint
//   - sign           Sign a payload and print the stamp
//   - provision      Create the wallet and its first account
//   - kyc            Show, save or clear the identity verification link
//
// # Implementation
//
// The root command loads config.yaml from the home directory, applies
// CUSTODIA_* environment overrides and flags, and builds the dependency graph
// before any subcommand runs. Commands annotated as gated pass the mandatory
// device authentication gate first; the gate's lockout state is persisted, so
// restarting the CLI does not reset it.
package commands
