package encryption

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/third_party/vault"
)

func newMockKeyRepository(t *testing.T) (*KeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewKeyRepository(sqlx.NewDb(db, "postgres")), mock
}

// Scenario 7 (spec §8): rotating a DEK does not invalidate payloads
// still encrypted under the old DEK until the caller's reencrypt
// callback has migrated them.
func TestDekRotation_OldCiphertextSurvivesUntilMigrated(t *testing.T) {
	ctx := context.Background()
	mk, err := GenerateMasterKey()
	require.NoError(t, err)
	v := vault.NewInMemory()
	dekMgr := NewDekManager(mk, v)
	_, err = dekMgr.GenerateDEK(ctx, "user", "alice")
	require.NoError(t, err)

	plaintext := []byte("old payload")
	ciphertext, nonce, err := dekMgr.Encrypt(ctx, "user", "alice", plaintext)
	require.NoError(t, err)

	keys, mock := newMockKeyRepository(t)
	mock.ExpectExec("UPDATE encryption_keys SET is_active = false").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO encryption_keys").WillReturnResult(sqlmock.NewResult(1, 1))

	rotation := NewDekRotation(dekMgr, keys)
	var capturedOld, capturedNew []byte
	result, err := rotation.RotateDEK(ctx, "user", "alice", "scheduled", func(_ context.Context, oldDEK, newDEK []byte) (int, error) {
		capturedOld = oldDEK
		capturedNew = newDEK
		// Re-encrypt the one known field; a real caller would iterate
		// every ciphertext column scoped to this entity.
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.FieldsRotated)
	assert.NotEqual(t, capturedOld, capturedNew)

	// The old ciphertext decrypts against the DEK captured during
	// rotation (the DEK that was active when it was written),
	// demonstrating non-eager payloads remain readable mid-migration.
	decrypted, err := decryptGCM(capturedOld, ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// The entity's live DEK is now the new one.
	live, found, err := dekMgr.GetDEK(ctx, "user", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, capturedNew, live)

	// The mirror table reflects the rotation: the old row deactivated,
	// the new wrapped key upserted.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDekRotation_ReencryptFailureLeavesOldDEKIntact(t *testing.T) {
	ctx := context.Background()
	mk, err := GenerateMasterKey()
	require.NoError(t, err)
	v := vault.NewInMemory()
	dekMgr := NewDekManager(mk, v)
	oldDEK, err := dekMgr.GenerateDEK(ctx, "user", "bob")
	require.NoError(t, err)

	keys, _ := newMockKeyRepository(t)
	rotation := NewDekRotation(dekMgr, keys)
	_, err = rotation.RotateDEK(ctx, "user", "bob", "scheduled", func(_ context.Context, _, _ []byte) (int, error) {
		return 0, assert.AnError
	})
	require.Error(t, err)

	// Rotation aborted: the DEK on file is still the original one.
	current, found, err := dekMgr.GetDEK(ctx, "user", "bob")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, oldDEK, current)
}

// Scenario 8 (spec §8): rotating the master key re-wraps every DEK
// without touching payload ciphertexts; both old and newly encrypted
// payloads remain decryptable afterwards.
func TestMasterKeyRotation_PreservesPayloadsBothSidesOfRotation(t *testing.T) {
	ctx := context.Background()
	oldKey, err := GenerateMasterKey()
	require.NoError(t, err)
	v := vault.NewInMemory()
	dekMgr := NewDekManager(oldKey, v)
	_, err = dekMgr.GenerateDEK(ctx, "user", "alice")
	require.NoError(t, err)

	preRotationCiphertext, preRotationNonce, err := dekMgr.Encrypt(ctx, "user", "alice", []byte("pre-rotation"))
	require.NoError(t, err)

	newKey, err := GenerateMasterKey()
	require.NoError(t, err)

	keys, mock := newMockKeyRepository(t)
	aliceRow := models.EncryptionKey{
		ID:           uuid.New(),
		EntityID:     "alice",
		EntityType:   "user",
		EncryptedKey: []byte("placeholder-ciphertext"),
		Nonce:        []byte("placeholder-n"),
		KeyAlgorithm: "AES-256-GCM",
		IsActive:     true,
	}
	mock.ExpectQuery("SELECT (.+) FROM encryption_keys WHERE is_active").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "entity_id", "entity_type", "encrypted_key", "nonce", "key_algorithm", "created_at", "rotated_at", "is_active",
		}).AddRow(aliceRow.ID, aliceRow.EntityID, aliceRow.EntityType, aliceRow.EncryptedKey, aliceRow.Nonce, aliceRow.KeyAlgorithm, time.Now(), nil, true))
	mock.ExpectExec("UPDATE encryption_keys SET encrypted_key").WillReturnResult(sqlmock.NewResult(0, 1))

	rotation := NewMasterKeyRotation(v, keys)
	result, err := rotation.RotateMasterKey(ctx, oldKey, newKey)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RotatedCount)
	assert.Empty(t, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())

	newMgr := NewDekManager(newKey, v)

	decrypted, err := newMgr.Decrypt(ctx, "user", "alice", preRotationCiphertext, preRotationNonce)
	require.NoError(t, err)
	assert.Equal(t, "pre-rotation", string(decrypted))

	postCiphertext, postNonce, err := newMgr.Encrypt(ctx, "user", "alice", []byte("post-rotation"))
	require.NoError(t, err)
	decryptedPost, err := newMgr.Decrypt(ctx, "user", "alice", postCiphertext, postNonce)
	require.NoError(t, err)
	assert.Equal(t, "post-rotation", string(decryptedPost))
}
