package types

import "time"

// PreparePayload is the challenge issued by a prepare endpoint.
type PreparePayload struct {
	PayloadID     PayloadID `json:"payloadId"`
	PayloadToSign string    `json:"payloadToSign"`
}

// Submission answers a PreparePayload.
type Submission struct {
	PayloadID PayloadID `json:"payloadId"`
	Signature string    `json:"signature"`
}

// Wallet is the custodial wallet created by the remote.
type Wallet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// WalletAccount is an account derived inside a Wallet.
type WalletAccount struct {
	ID        string    `json:"id"`
	WalletID  string    `json:"walletId"`
	Address   string    `json:"address"`
	Curve     string    `json:"curve"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// Response is the envelope every wallet API endpoint replies with.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}
