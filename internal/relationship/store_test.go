package relationship

import (
	"context"
	"sync"
	"time"

	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
)

// fakeRepository is an in-process Repository used to exercise Store's
// tuple lifecycle without a database connection.
type fakeRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Relationship
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rows: make(map[uuid.UUID]*models.Relationship)}
}

func (f *fakeRepository) Create(_ context.Context, rel *models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.CreatedAt = time.Now().UTC()
	rel.UpdatedAt = rel.CreatedAt
	cp := *rel
	f.rows[rel.ID] = &cp
	return nil
}

func (f *fakeRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, apperrors.NotFoundf("not found")
}

func (f *fakeRepository) FindByUser(_ context.Context, user string) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.User == user {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByObject(_ context.Context, object string) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.Object == object {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByUserAndRelation(_ context.Context, user, relation string) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.User == user && r.Relation == relation {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByTuple(_ context.Context, user, relation, object string) (*models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.User == user && r.Relation == relation && r.Object == object && r.DeletedAt == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.NotFoundf("no tuple %s#%s@%s", user, relation, object)
}

func (f *fakeRepository) FindByUserAndOrg(_ context.Context, user string, orgID uuid.UUID) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.User == user && r.OrganizationID != nil && *r.OrganizationID == orgID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepository) FindByOrganization(_ context.Context, orgID uuid.UUID) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.OrganizationID != nil && *r.OrganizationID == orgID && r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepository) Update(_ context.Context, rel *models.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[rel.ID]; !ok {
		return apperrors.NotFoundf("not found")
	}
	rel.Version++
	cp := *rel
	f.rows[rel.ID] = &cp
	return nil
}

func (f *fakeRepository) ListAll(_ context.Context) ([]models.Relationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Relationship
	for _, r := range f.rows {
		if r.DeletedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

// Scenario 1 (spec §8): direct grant, revoke, re-add.
func TestStore_DirectGrantRevokeReAdd(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepository())

	require.NoError(t, store.Add(ctx, "user:alice", "view", "doc:1"))
	ok, err := store.Check(ctx, "user:alice", "view", "doc:1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Revoke(ctx, "user:alice", "view", "doc:1", nil))
	ok, err = store.Check(ctx, "user:alice", "view", "doc:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Add(ctx, "user:alice", "view", "doc:1"))
	ok, err = store.Check(ctx, "user:alice", "view", "doc:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Scenario 5 (spec §8): expiry.
func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepository())

	now := time.Now().UTC()
	expiresAt := now.Add(50 * time.Millisecond)
	require.NoError(t, store.AddWithValidity(ctx, "user:carol", "view", "doc:4", now.Add(-time.Minute), &expiresAt))

	ok, err := store.Check(ctx, "user:carol", "view", "doc:4")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(80 * time.Millisecond)

	ok, err = store.Check(ctx, "user:carol", "view", "doc:4")
	require.NoError(t, err)
	assert.False(t, ok)
}

// Round-trip law (spec §8): soft_delete; add leaves exactly one live tuple.
func TestStore_SoftDeleteThenAdd_OneLiveTuple(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	store := NewStore(repo)

	require.NoError(t, store.Add(ctx, "user:dave", "edit", "doc:5"))
	require.NoError(t, store.SoftDelete(ctx, "user:dave", "edit", "doc:5", nil))
	require.NoError(t, store.Add(ctx, "user:dave", "edit", "doc:5"))

	valid, err := store.GetValidRelationships(ctx, "user:dave")
	require.NoError(t, err)
	assert.Len(t, valid, 1)
}

func TestStore_ExtendExpiration(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newFakeRepository())

	now := time.Now().UTC()
	expiresAt := now.Add(time.Millisecond)
	require.NoError(t, store.AddWithValidity(ctx, "user:erin", "view", "doc:6", now, &expiresAt))

	newExpiry := now.Add(time.Hour)
	require.NoError(t, store.ExtendExpiration(ctx, "user:erin", "view", "doc:6", newExpiry))

	ok, err := store.Check(ctx, "user:erin", "view", "doc:6")
	require.NoError(t, err)
	assert.True(t, ok)
}
