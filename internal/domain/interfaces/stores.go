package interfaces

import (
	"context"

	domaintypes "custodia/internal/domain/types"
)

// RecordStore is protected, sandboxed key-value storage for string records.
type RecordStore interface {
	Get(ctx context.Context, key domaintypes.RecordKey) (string, bool, error)
	Set(ctx context.Context, key domaintypes.RecordKey, value string) error
	Delete(ctx context.Context, key domaintypes.RecordKey) error
}

// RecordLocker is implemented by stores that several processes can open at
// once. Lock blocks until the caller holds the store exclusively or ctx is
// done; the returned func releases it.
type RecordLocker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// KeyStore owns the device's single long-lived signing identity.
type KeyStore interface {
	HasExistingKeys(ctx context.Context) (bool, error)
	GenerateAndStoreKeys(ctx context.Context) (string, error)
	GetPublicKey(ctx context.Context) (string, bool, error)
	GetPrivateKey(ctx context.Context) (string, bool, error)
}

// LinkStateStore persists the KYC link state as a plain record.
type LinkStateStore interface {
	Load(ctx context.Context) (domaintypes.KYCLinkState, bool, error)
	Save(ctx context.Context, state domaintypes.KYCLinkState) error
	Clear(ctx context.Context) error
}
