package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
)

// fakeRefreshRepository is an in-memory RefreshTokenRepository for
// exercising Manager without a database.
type fakeRefreshRepository struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken
}

func newFakeRefreshRepository() *fakeRefreshRepository {
	return &fakeRefreshRepository{rows: make(map[string]*models.RefreshToken)}
}

func (f *fakeRefreshRepository) Store(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[tokenHash] = &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (f *fakeRefreshRepository) FindByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.rows[tokenHash]
	if !ok {
		return nil, apperrors.NotFoundf("refresh token not found")
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeRefreshRepository) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rt := range f.rows {
		if rt.ID == id {
			now := time.Now().UTC()
			rt.IsRevoked = true
			rt.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRefreshRepository) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rt := range f.rows {
		if rt.UserID == userID {
			now := time.Now().UTC()
			rt.IsRevoked = true
			rt.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeRefreshRepository) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// deleteByHash simulates a row already reaped by DeleteExpired (or any
// other cause of "not found") while the signed JWT itself is still
// unexpired and otherwise valid.
func (f *fakeRefreshRepository) deleteByHash(tokenHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, tokenHash)
}

func newTestManager() (*Manager, *fakeRefreshRepository) {
	repo := newFakeRefreshRepository()
	return NewManager("test-secret-at-least-32-bytes-long!", "auth-service-test", 15*time.Minute, 7*24*time.Hour, repo), repo
}

func TestManager_IssueAndVerifyAccessToken(t *testing.T) {
	m, _ := newTestManager()
	userID := uuid.New()

	access, expiresAt, err := m.IssueAccessToken(userID.String(), "alice@example.com", "admin", []string{"doc:read"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := m.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, []string{"doc:read"}, claims.Permissions)
}

func TestManager_VerifyAccessToken_WrongIssuerRejected(t *testing.T) {
	m, _ := newTestManager()
	other := NewManager("test-secret-at-least-32-bytes-long!", "someone-else", 15*time.Minute, 7*24*time.Hour, newFakeRefreshRepository())

	token, _, err := other.IssueAccessToken("u1", "a@b.com", "", nil)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Authentication))
}

// Scenario 6: issue (access1, refresh1); refresh(refresh1) yields
// (access2, refresh2); refresh(refresh1) again now fails.
func TestManager_RefreshRotation_OldRefreshTokenRejectedAfterUse(t *testing.T) {
	m, _ := newTestManager()
	userID := uuid.New()

	pair1, err := m.IssueTokenPair(context.Background(), userID, "alice@example.com", "admin", nil)
	require.NoError(t, err)

	pair2, err := m.Refresh(context.Background(), pair1.RefreshToken, "alice@example.com", "admin", nil)
	require.NoError(t, err)
	assert.NotEqual(t, pair1.AccessToken, pair2.AccessToken)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	_, err = m.Refresh(context.Background(), pair1.RefreshToken, "alice@example.com", "admin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Authentication))

	claims, err := m.VerifyAccessToken(pair2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestManager_Refresh_UnknownTokenRejected(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Refresh(context.Background(), "not-a-real-jwt", "a@b.com", "", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Authentication))
}

// A signed, unexpired refresh JWT whose stored row was already reaped
// (e.g. by DeleteExpired, or any other not-found case) must surface as
// an Authentication error, not the repository's raw NotFound.
func TestManager_Refresh_ReapedRowSurfacesAsAuthentication(t *testing.T) {
	m, repo := newTestManager()
	userID := uuid.New()

	pair, err := m.IssueTokenPair(context.Background(), userID, "alice@example.com", "admin", nil)
	require.NoError(t, err)

	repo.deleteByHash(hashToken(pair.RefreshToken))

	_, err = m.Refresh(context.Background(), pair.RefreshToken, "alice@example.com", "admin", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.Authentication))
	assert.False(t, apperrors.IsKind(err, apperrors.NotFound))
}
