// Package provision creates the user's wallet and first wallet account.
//
// Each resource goes through prepare, sign and submit against the wallet API:
// the remote issues a single-use payload, the device signs it with the stored
// P-256 key, and the stamp is submitted back. The account stage starts only
// after the wallet submission succeeded. Any failure aborts the run; retrying
// means calling Run again, which requests fresh payloads.
package provision
