package keys

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"custodia/internal/crypto"
	"custodia/internal/domain"
	"custodia/internal/logging"
)

// Service owns the device's single long-lived P-256 signing identity.
//
// The keypair lives in two records:
//   - domain.RecordPrivateKey, the 64-hex scalar, never returned outside the device.
//   - domain.RecordPublicKey, the compressed point registered with the remote.
type Service struct {
	records domain.RecordStore
	entropy io.Reader
	log     *slog.Logger
}

// New returns a key service persisting to records and drawing entropy from entropy
// (crypto/rand.Reader in production).
func New(records domain.RecordStore, entropy io.Reader, logger *slog.Logger) *Service {
	return &Service{records: records, entropy: entropy, log: logging.OrDiscard(logger)}
}

// HasExistingKeys reports whether a public key record exists.
func (s *Service) HasExistingKeys(ctx context.Context) (bool, error) {
	_, ok, err := s.records.Get(ctx, domain.RecordPublicKey)
	return ok, err
}

// GenerateAndStoreKeys creates a new keypair, persists it and returns the public key.
// Calling it again overwrites the existing keypair; callers check HasExistingKeys first.
func (s *Service) GenerateAndStoreKeys(ctx context.Context) (string, error) {
	kp, err := crypto.GenerateP256(s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}
	// Private first: a public record implies a usable private record.
	if err := s.records.Set(ctx, domain.RecordPrivateKey, kp.PrivateKey); err != nil {
		return "", fmt.Errorf("store private key: %w", err)
	}
	if err := s.records.Set(ctx, domain.RecordPublicKey, kp.PublicKey); err != nil {
		return "", fmt.Errorf("store public key: %w", err)
	}
	s.log.Info("signing identity created", "public_key", kp.PublicKey)
	return kp.PublicKey, nil
}

// GetPublicKey returns the stored public key; ok is false when absent.
func (s *Service) GetPublicKey(ctx context.Context) (string, bool, error) {
	return s.records.Get(ctx, domain.RecordPublicKey)
}

// GetPrivateKey returns the stored private key; ok is false when absent.
func (s *Service) GetPrivateKey(ctx context.Context) (string, bool, error) {
	return s.records.Get(ctx, domain.RecordPrivateKey)
}

// LoadKeyPair returns both keys or domain.ErrKeyAbsent if either is missing.
func (s *Service) LoadKeyPair(ctx context.Context) (domain.KeyPair, error) {
	pub, ok, err := s.GetPublicKey(ctx)
	if err != nil {
		return domain.KeyPair{}, err
	}
	if !ok {
		return domain.KeyPair{}, domain.ErrKeyAbsent
	}
	priv, ok, err := s.GetPrivateKey(ctx)
	if err != nil {
		return domain.KeyPair{}, err
	}
	if !ok {
		return domain.KeyPair{}, domain.ErrKeyAbsent
	}
	return domain.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// EnsureRegistered generates a keypair unless one already exists, then registers
// the public key with the remote. Registration is idempotent remotely, so a
// failed registration is retried by calling EnsureRegistered again.
// created reports whether a new keypair was generated by this call.
func (s *Service) EnsureRegistered(ctx context.Context, registrar domain.KeyRegistrar) (pub string, created bool, err error) {
	pub, ok, err := s.GetPublicKey(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok {
		if pub, err = s.GenerateAndStoreKeys(ctx); err != nil {
			return "", false, err
		}
		created = true
	}
	if err := registrar.RegisterPublicKey(ctx, pub); err != nil {
		return pub, created, fmt.Errorf("register public key: %w", err)
	}
	s.log.Info("signing identity registered", "public_key", pub, "created", created)
	return pub, created, nil
}

// Fingerprint returns a short fingerprint of the stored public key.
func (s *Service) Fingerprint(ctx context.Context) (domain.Fingerprint, error) {
	pub, ok, err := s.GetPublicKey(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrKeyAbsent
	}
	return domain.Fingerprint(crypto.FingerprintHex(pub)), nil
}

// Compile-time assertion that Service implements domain.KeyStore.
var _ domain.KeyStore = (*Service)(nil)
