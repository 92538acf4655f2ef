package encryption

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/shared/repository"
)

// KeyRepository mirrors each entity's wrapped DEK into Postgres
// alongside the authoritative copy in Vault, purely for listing and
// rotation bookkeeping (spec §4.3 "EncryptionKey DB rows store
// encrypted_key/nonce in separate bytea columns").
type KeyRepository struct {
	*repository.BaseRepository
}

func NewKeyRepository(db *sqlx.DB) *KeyRepository {
	return &KeyRepository{BaseRepository: repository.NewBaseRepository(db)}
}

const insertEncryptionKeyQuery = `
INSERT INTO encryption_keys (id, entity_id, entity_type, encrypted_key, nonce, key_algorithm, created_at, is_active)
VALUES (:id, :entity_id, :entity_type, :encrypted_key, :nonce, :key_algorithm, :created_at, :is_active)
ON CONFLICT (entity_type, entity_id) WHERE is_active
DO UPDATE SET encrypted_key = EXCLUDED.encrypted_key, nonce = EXCLUDED.nonce, rotated_at = now()
`

// Upsert records the current wrapped-DEK mirror for entityType/entityID.
func (r *KeyRepository) Upsert(ctx context.Context, key *models.EncryptionKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	return r.Create(ctx, insertEncryptionKeyQuery, key)
}

const listActiveEncryptionKeysQuery = `
SELECT id, entity_id, entity_type, encrypted_key, nonce, key_algorithm, created_at, rotated_at, is_active
FROM encryption_keys WHERE is_active = true ORDER BY created_at
`

// ListActive returns every entity currently holding a live DEK, the
// working set for master-key rotation.
func (r *KeyRepository) ListActive(ctx context.Context) ([]models.EncryptionKey, error) {
	var keys []models.EncryptionKey
	if err := r.List(ctx, &keys, listActiveEncryptionKeysQuery); err != nil {
		return nil, err
	}
	return keys, nil
}

const markEncryptionKeyRotatedQuery = `
UPDATE encryption_keys SET encrypted_key = :encrypted_key, nonce = :nonce, rotated_at = :rotated_at
WHERE id = :id
`

// MarkRotated persists the re-wrapped bytes for an already-listed row.
func (r *KeyRepository) MarkRotated(ctx context.Context, key *models.EncryptionKey) error {
	now := time.Now().UTC()
	key.RotatedAt = &now
	_, err := r.Update(ctx, markEncryptionKeyRotatedQuery, key)
	return err
}

const deactivateEncryptionKeyQuery = `
UPDATE encryption_keys SET is_active = false WHERE entity_type = :entity_type AND entity_id = :entity_id AND is_active = true
`

// Deactivate marks the mirror row inactive once a DEK has been
// rotated away and the old key is no longer decryptable by design.
func (r *KeyRepository) Deactivate(ctx context.Context, entityType, entityID string) error {
	_, err := r.Update(ctx, deactivateEncryptionKeyQuery, map[string]any{
		"entity_type": entityType,
		"entity_id":   entityID,
	})
	return err
}
