package domain

import (
	interfaces "custodia/internal/domain/interfaces"
	types "custodia/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Fingerprint    = types.Fingerprint
	RecordKey      = types.RecordKey
	PayloadID      = types.PayloadID
	KeyPair        = types.KeyPair
	SignedStamp    = types.SignedStamp
	LockoutState   = types.LockoutState
	PreparePayload = types.PreparePayload
	Submission     = types.Submission
	Wallet         = types.Wallet
	WalletAccount  = types.WalletAccount
	KYCLinkState   = types.KYCLinkState
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	RecordStore    = interfaces.RecordStore
	RecordLocker   = interfaces.RecordLocker
	KeyStore       = interfaces.KeyStore
	LinkStateStore = interfaces.LinkStateStore
	WalletAPI      = interfaces.WalletAPI
	KeyRegistrar   = interfaces.KeyRegistrar
	TokenSource    = interfaces.TokenSource
)
