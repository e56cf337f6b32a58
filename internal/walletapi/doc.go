// Package walletapi talks to the remote wallet service and provides an
// in-memory reference implementation of it.
//
// Every endpoint is a JSON POST answered with the envelope
// {success, message, data}. A reply with success=false is an application
// error even on HTTP 200, and its message is returned verbatim as a
// domain.RemoteRejectedError. Transport failures are domain.NetworkError.
//
//	POST /keys/register            {publicKey}           -> {publicKey}
//	POST /wallet/prepare                                  -> {payloadId, payloadToSign}
//	POST /wallet/submit            {payloadId, signature} -> Wallet
//	POST /wallet/accounts/prepare                         -> {payloadId, payloadToSign}
//	POST /wallet/accounts/submit   {payloadId, signature} -> WalletAccount
//
// Requests carry a bearer token from a domain.TokenSource and an
// X-Request-Id header, and are paced by a token-bucket limiter.
package walletapi
