package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/zeromicro/go-zero/core/logx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/third_party/vault"
)

const dekSize = 32 // 256-bit

// DekManager owns the per-entity data-encryption keys (C3): it
// generates them, wraps them with the master key for storage in
// Vault, and uses them to encrypt/decrypt caller-supplied plaintext.
type DekManager struct {
	masterKey *MasterKey
	vault     vault.Vault
}

func NewDekManager(masterKey *MasterKey, v vault.Vault) *DekManager {
	return &DekManager{masterKey: masterKey, vault: v}
}

// GenerateDEK creates a new random DEK for entityType/entityID, wraps
// it with the master key, and stores the wrapped form in Vault. It
// returns the unwrapped DEK bytes for immediate use by the caller.
func (m *DekManager) GenerateDEK(ctx context.Context, entityType, entityID string) ([]byte, error) {
	dek := make([]byte, dekSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "failed to generate DEK", err)
	}

	wrapped, err := wrapWithKey(m.masterKey.Bytes(), dek)
	if err != nil {
		return nil, err
	}

	if err := m.vault.StoreDEK(ctx, entityType, entityID, wrapped); err != nil {
		return nil, err
	}
	return dek, nil
}

// GetDEK retrieves and unwraps the DEK for entityType/entityID,
// returning (nil, false, nil) if none has been generated yet.
func (m *DekManager) GetDEK(ctx context.Context, entityType, entityID string) ([]byte, bool, error) {
	wrapped, found, err := m.vault.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	dek, err := unwrapWithKey(m.masterKey.Bytes(), wrapped)
	if err != nil {
		return nil, false, err
	}
	return dek, true, nil
}

// DeleteDEK removes the entity's DEK from Vault entirely.
func (m *DekManager) DeleteDEK(ctx context.Context, entityType, entityID string) error {
	return m.vault.DeleteDEK(ctx, entityType, entityID)
}

// GenerateAndMirrorDEK generates a DEK, stores its wrapped form in
// Vault, and records a matching row in keys so rotation and listing
// operations have a queryable index of live DEKs (spec §4.3's
// encrypted_key/nonce mirror columns).
func (m *DekManager) GenerateAndMirrorDEK(ctx context.Context, entityType, entityID string, keys *KeyRepository) ([]byte, error) {
	dek, err := m.GenerateDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	wrapped, found, err := m.vault.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.Encryptionf("DEK vanished immediately after generation for %s/%s", entityType, entityID)
	}
	nonce, ciphertext, err := splitWrapped(wrapped)
	if err != nil {
		return nil, err
	}
	if err := keys.Upsert(ctx, &models.EncryptionKey{
		EntityID:     entityID,
		EntityType:   entityType,
		EncryptedKey: ciphertext,
		Nonce:        nonce,
		KeyAlgorithm: "AES-256-GCM",
		IsActive:     true,
	}); err != nil {
		return nil, err
	}
	return dek, nil
}

// Encrypt encrypts data under entityType/entityID's DEK, returning the
// ciphertext and the nonce used, stored separately per spec §9. On
// first use for a scope no DEK exists yet, so one is generated and
// stored in Vault before encrypting.
func (m *DekManager) Encrypt(ctx context.Context, entityType, entityID string, data []byte) (ciphertext, nonce []byte, err error) {
	dek, found, err := m.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		dek, err = m.GenerateDEK(ctx, entityType, entityID)
		if err != nil {
			return nil, nil, err
		}
	}
	return encryptGCM(dek, data)
}

// Decrypt decrypts ciphertext encrypted by Encrypt for the same
// entityType/entityID, given the nonce returned at encryption time.
func (m *DekManager) Decrypt(ctx context.Context, entityType, entityID string, ciphertext, nonce []byte) ([]byte, error) {
	dek, found, err := m.GetDEK(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.Encryptionf("DEK not found for %s/%s", entityType, entityID)
	}
	return decryptGCM(dek, ciphertext, nonce)
}

// wrapWithKey encrypts dek with key (AES-256-GCM) and prepends the
// nonce so the result is self-contained for Vault storage.
func wrapWithKey(key, dek []byte) ([]byte, error) {
	ciphertext, nonce, err := encryptGCM(key, dek)
	if err != nil {
		return nil, err
	}
	wrapped := make([]byte, 0, len(nonce)+len(ciphertext))
	wrapped = append(wrapped, nonce...)
	wrapped = append(wrapped, ciphertext...)
	return wrapped, nil
}

// splitWrapped separates a nonce∥ciphertext blob back into its parts,
// for collaborators (KeyRepository) that mirror the two into separate
// database columns instead of storing the combined form.
func splitWrapped(wrapped []byte) (nonce, ciphertext []byte, err error) {
	const nonceSize = 12
	if len(wrapped) < nonceSize {
		return nil, nil, apperrors.Encryptionf("invalid wrapped key format")
	}
	return wrapped[:nonceSize], wrapped[nonceSize:], nil
}

func unwrapWithKey(key, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "invalid master key", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "failed to initialize GCM", err)
	}
	if len(wrapped) < gcm.NonceSize() {
		return nil, apperrors.Encryptionf("invalid wrapped DEK format")
	}
	nonce := wrapped[:gcm.NonceSize()]
	ciphertext := wrapped[gcm.NonceSize():]
	dek, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		logx.Errorf("failed to unwrap DEK: %v", err)
		return nil, apperrors.Wrap(apperrors.Encryption, "failed to unwrap DEK", err)
	}
	return dek, nil
}

// encryptGCM is the shared AES-256-GCM primitive used for both DEK
// wrapping and field-level encryption.
func encryptGCM(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.Encryption, "invalid key", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.Encryption, "failed to initialize GCM", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.Encryption, "failed to generate nonce", err)
	}
	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

func decryptGCM(key, ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "invalid key", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "failed to initialize GCM", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Encryption, "decryption failed", err)
	}
	return plaintext, nil
}
