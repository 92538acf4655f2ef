package encryption

import (
	"context"
	"encoding/base64"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
)

// FieldEncryption encodes the DekManager's (ciphertext, nonce) pair
// into the single base64 string callers store in a text column:
// nonce ∥ ciphertext, base64-encoded, per spec §9's fixed decision.
type FieldEncryption struct {
	dek *DekManager
}

func NewFieldEncryption(dek *DekManager) *FieldEncryption {
	return &FieldEncryption{dek: dek}
}

// EncryptField encrypts value under entityType/entityID's DEK and
// returns the combined, base64-encoded string.
func (f *FieldEncryption) EncryptField(ctx context.Context, entityType, entityID, value string) (string, error) {
	ciphertext, nonce, err := f.dek.Encrypt(ctx, entityType, entityID, []byte(value))
	if err != nil {
		return "", err
	}
	combined := make([]byte, 0, len(nonce)+len(ciphertext))
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// DecryptField reverses EncryptField.
func (f *FieldEncryption) DecryptField(ctx context.Context, entityType, entityID, encoded string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperrors.Wrap(apperrors.Encryption, "base64 decode failed", err)
	}
	// AES-GCM nonces are 12 bytes for the stdlib's default NonceSize.
	const nonceSize = 12
	if len(combined) < nonceSize {
		return "", apperrors.Encryptionf("invalid encrypted field format")
	}
	nonce := combined[:nonceSize]
	ciphertext := combined[nonceSize:]
	plaintext, err := f.dek.Decrypt(ctx, entityType, entityID, ciphertext, nonce)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
