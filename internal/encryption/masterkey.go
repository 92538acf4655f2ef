// Package encryption implements the envelope-encryption core (C2, C3):
// a single master key wraps per-entity data-encryption keys, which in
// turn wrap field-level plaintext with AES-256-GCM.
package encryption

import (
	"context"
	"crypto/rand"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/third_party/vault"
)

const masterKeySize = 32 // 256-bit

// MasterKey is the root secret (C2): it never encrypts data directly,
// only wraps DEKs. Its bytes live in Vault, never in Postgres.
type MasterKey struct {
	key []byte
}

// NewMasterKeyFromBytes wraps an already-loaded key, e.g. one read
// from an environment variable by the caller.
func NewMasterKeyFromBytes(key []byte) (*MasterKey, error) {
	if len(key) != masterKeySize {
		return nil, apperrors.Encryptionf("master key must be %d bytes, got %d", masterKeySize, len(key))
	}
	return &MasterKey{key: key}, nil
}

// GenerateMasterKey creates a fresh random 256-bit key via crypto/rand,
// used for first-time bootstrap when Vault holds no master key yet.
func GenerateMasterKey() (*MasterKey, error) {
	key := make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "failed to generate master key", err)
	}
	return &MasterKey{key: key}, nil
}

// LoadOrCreateMasterKey reads the master key from v, generating and
// persisting a new one on first use.
func LoadOrCreateMasterKey(ctx context.Context, v vault.Vault) (*MasterKey, error) {
	raw, found, err := v.GetMasterKey(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		return NewMasterKeyFromBytes(raw)
	}
	mk, err := GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	if err := v.StoreMasterKey(ctx, mk.key); err != nil {
		return nil, err
	}
	return mk, nil
}

// Bytes returns the raw key material.
func (m *MasterKey) Bytes() []byte {
	return m.key
}
