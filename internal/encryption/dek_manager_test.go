package encryption

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/authcore/third_party/vault"
)

func newTestDekManager(t *testing.T) *DekManager {
	t.Helper()
	mk, err := GenerateMasterKey()
	require.NoError(t, err)
	return NewDekManager(mk, vault.NewInMemory())
}

func TestDekManager_GenerateAndGet(t *testing.T) {
	ctx := context.Background()
	m := newTestDekManager(t)

	dek, err := m.GenerateDEK(ctx, "user", "alice")
	require.NoError(t, err)
	assert.Len(t, dek, dekSize)

	got, found, err := m.GetDEK(ctx, "user", "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, dek, got)
}

func TestDekManager_GetDEK_NotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestDekManager(t)

	_, found, err := m.GetDEK(ctx, "user", "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

// encrypt ∘ decrypt = id; two successive encrypts of the same input
// produce distinct ciphertexts (nonce freshness). Spec §8 round-trip law.
func TestDekManager_EncryptDecrypt_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestDekManager(t)
	_, err := m.GenerateDEK(ctx, "user", "alice")
	require.NoError(t, err)

	plaintext := []byte("sensitive payload")

	ct1, nonce1, err := m.Encrypt(ctx, "user", "alice", plaintext)
	require.NoError(t, err)
	ct2, nonce2, err := m.Encrypt(ctx, "user", "alice", plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2, "identical plaintext must yield distinct ciphertexts")
	assert.NotEqual(t, nonce1, nonce2)

	got1, err := m.Decrypt(ctx, "user", "alice", ct1, nonce1)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got1)

	got2, err := m.Decrypt(ctx, "user", "alice", ct2, nonce2)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got2)
}

// First encryption for a scope has no existing DEK; Encrypt must
// generate one rather than failing.
func TestDekManager_Encrypt_AutoGeneratesDEKOnFirstUse(t *testing.T) {
	ctx := context.Background()
	m := newTestDekManager(t)

	_, found, err := m.GetDEK(ctx, "user", "ghost")
	require.NoError(t, err)
	require.False(t, found)

	plaintext := []byte("x")
	ciphertext, nonce, err := m.Encrypt(ctx, "user", "ghost", plaintext)
	require.NoError(t, err)

	_, found, err = m.GetDEK(ctx, "user", "ghost")
	require.NoError(t, err)
	assert.True(t, found, "Encrypt must generate and store a DEK on first use")

	got, err := m.Decrypt(ctx, "user", "ghost", ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDekManager_Decrypt_WithoutDEK(t *testing.T) {
	ctx := context.Background()
	m := newTestDekManager(t)

	_, err := m.Decrypt(ctx, "user", "ghost", []byte("ciphertext"), make([]byte, 12))
	assert.Error(t, err)
}

func TestFieldEncryption_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dek := newTestDekManager(t)
	_, err := dek.GenerateDEK(ctx, "user", "alice")
	require.NoError(t, err)

	fe := NewFieldEncryption(dek)

	encoded, err := fe.EncryptField(ctx, "user", "alice", "alice@example.com")
	require.NoError(t, err)
	assert.NotContains(t, encoded, "alice@example.com")

	decoded, err := fe.DecryptField(ctx, "user", "alice", encoded)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", decoded)
}
