package encryption

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/third_party/vault"
)

// MasterKeyRotation rotates the master key itself (C3): every
// entity's DEK is unwrapped with the old key and rewrapped with the
// new one. It never touches payload ciphertexts — per spec §4.3,
// master-key rotation is DEK-layer only.
type MasterKeyRotation struct {
	vault vault.Vault
	keys  *KeyRepository
}

func NewMasterKeyRotation(v vault.Vault, keys *KeyRepository) *MasterKeyRotation {
	return &MasterKeyRotation{vault: v, keys: keys}
}

// MasterRotationResult reports how many DEKs were rewrapped and which
// entities, if any, failed to rewrap (and so are left on the old key).
type MasterRotationResult struct {
	RotatedCount int
	Failed       []string
}

// RotateMasterKey rewraps every active DEK from oldKey to newKey.
func (m *MasterKeyRotation) RotateMasterKey(ctx context.Context, oldKey, newKey *MasterKey) (*MasterRotationResult, error) {
	active, err := m.keys.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &MasterRotationResult{}
	for i := range active {
		row := active[i]
		rotated, rotErr := m.rotateOne(ctx, &row, oldKey, newKey)
		if rotErr != nil {
			logx.WithContext(ctx).Errorf("failed to rotate DEK for %s/%s: %v", row.EntityType, row.EntityID, rotErr)
			result.Failed = append(result.Failed, row.EntityType+"/"+row.EntityID)
			continue
		}
		if rotated {
			result.RotatedCount++
		}
	}
	return result, nil
}

// rotateOne rewraps row's DEK; it reports false, nil when Vault holds
// no DEK for the row, so nothing was rewrapped.
func (m *MasterKeyRotation) rotateOne(ctx context.Context, row *models.EncryptionKey, oldKey, newKey *MasterKey) (bool, error) {
	wrapped, found, err := m.vault.GetDEK(ctx, row.EntityType, row.EntityID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	dek, err := unwrapWithKey(oldKey.Bytes(), wrapped)
	if err != nil {
		return false, err
	}

	rewrapped, err := wrapWithKey(newKey.Bytes(), dek)
	if err != nil {
		return false, err
	}

	if err := m.vault.StoreDEK(ctx, row.EntityType, row.EntityID, rewrapped); err != nil {
		return false, err
	}

	nonce, ciphertext, err := splitWrapped(rewrapped)
	if err != nil {
		return false, err
	}
	row.Nonce = nonce
	row.EncryptedKey = ciphertext
	return true, m.keys.MarkRotated(ctx, row)
}
