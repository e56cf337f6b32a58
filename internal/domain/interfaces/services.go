package interfaces

import (
	"context"

	domaintypes "custodia/internal/domain/types"
)

// WalletAPI is the remote prepare/submit collaborator.
type WalletAPI interface {
	PrepareWallet(ctx context.Context) (domaintypes.PreparePayload, error)
	SubmitWallet(ctx context.Context, sub domaintypes.Submission) (domaintypes.Wallet, error)
	PrepareAccount(ctx context.Context) (domaintypes.PreparePayload, error)
	SubmitAccount(ctx context.Context, sub domaintypes.Submission) (domaintypes.WalletAccount, error)
}

// KeyRegistrar publishes the device public key to the remote.
type KeyRegistrar interface {
	RegisterPublicKey(ctx context.Context, publicKey string) error
}

// TokenSource supplies the bearer token for remote calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
