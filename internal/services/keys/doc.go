// Package keys manages creation, persistence and loading of the device signing identity.
//
// It generates a P-256 keypair from secure entropy and stores both halves via a
// domain.RecordStore (sealed storage in production). Only the public key is ever
// handed to the remote.
package keys
