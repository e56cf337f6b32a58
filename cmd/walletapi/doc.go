// Package main runs the in-memory reference wallet API used by custodia during
// development and tests.
//
// HTTP API
//
//	POST /keys/register {"publicKey": "..."}
//	    Register the device's compressed P-256 public key. Registering again
//	    replaces it.
//
//	POST /wallet/prepare
//	POST /wallet/accounts/prepare
//	    Issue a single-use payload {payloadId, payloadToSign}.
//
//	POST /wallet/submit {"payloadId": "...", "signature": "<stamp>"}
//	POST /wallet/accounts/submit {"payloadId": "...", "signature": "<stamp>"}
//	    Verify the stamp against the registered key and create the resource.
//	    The payload is consumed whether or not the stamp verifies.
//
//	GET /metrics
//	    Prometheus exposition.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - Every reply is the JSON envelope {success, message, data}.
//   - With --token set, every API route requires "Authorization: Bearer <token>".
//   - An access log records method, path, remote, status, bytes, request id and
//     duration for each request.
//   - The default listen address is 127.0.0.1:8090.
package main
