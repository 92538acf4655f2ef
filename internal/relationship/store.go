package relationship

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
)

// Store is the tuple-writing/reading façade (C5), a close port of
// original_source's RelationshipStore: it owns tuple lifecycle
// (add/extend/revoke/soft-delete) and exposes the valid subset a
// PermissionChecker needs.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Add creates an always-valid (no expiry) tuple.
func (s *Store) Add(ctx context.Context, user, relation, object string) error {
	return s.AddWithValidity(ctx, user, relation, object, time.Now().UTC(), nil)
}

// AddWithValidity creates a tuple with an explicit validity window.
func (s *Store) AddWithValidity(ctx context.Context, user, relation, object string, validFrom time.Time, expiresAt *time.Time) error {
	rel := &models.Relationship{
		User:      user,
		Relation:  relation,
		Object:    object,
		ValidFrom: validFrom,
		ExpiresAt: expiresAt,
		IsActive:  true,
		Metadata:  models.JSONMap{},
		Version:   1,
	}
	if err := s.repo.Create(ctx, rel); err != nil {
		logx.WithContext(ctx).Errorf("failed to create relationship %s#%s@%s: %v", user, relation, object, err)
		return err
	}
	return nil
}

// ExtendExpiration pushes out an existing tuple's expiry. It never
// shortens it: a tuple without expiry, or one whose expiry is already
// at or past newExpiresAt, is left unchanged.
func (s *Store) ExtendExpiration(ctx context.Context, user, relation, object string, newExpiresAt time.Time) error {
	rel, err := s.repo.FindByTuple(ctx, user, relation, object)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return nil
		}
		return err
	}
	if rel.ExpiresAt == nil || !newExpiresAt.After(*rel.ExpiresAt) {
		return nil
	}
	rel.ExpiresAt = &newExpiresAt
	rel.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, rel)
}

// Revoke soft-deletes a tuple, recording who revoked it.
func (s *Store) Revoke(ctx context.Context, user, relation, object string, revokedBy *uuid.UUID) error {
	return s.SoftDelete(ctx, user, relation, object, revokedBy)
}

// SoftDelete marks a tuple deleted and inactive without removing the row.
func (s *Store) SoftDelete(ctx context.Context, user, relation, object string, deletedBy *uuid.UUID) error {
	rel, err := s.repo.FindByTuple(ctx, user, relation, object)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return nil
		}
		return err
	}
	now := time.Now().UTC()
	rel.DeletedAt = &now
	rel.DeletedBy = deletedBy
	rel.IsActive = false
	rel.UpdatedAt = now
	return s.repo.Update(ctx, rel)
}

// Check reports whether user#relation@object currently holds a live
// tuple, ignoring role/group inheritance (that is PermissionChecker's job).
func (s *Store) Check(ctx context.Context, user, relation, object string) (bool, error) {
	rel, err := s.repo.FindByTuple(ctx, user, relation, object)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return false, nil
		}
		return false, err
	}
	return rel.IsValid(time.Now().UTC()), nil
}

// GetValidRelationships returns user's tuples that currently satisfy
// the validity predicate in spec §3.
func (s *Store) GetValidRelationships(ctx context.Context, user string) ([]models.Relationship, error) {
	all, err := s.repo.FindByUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return filterValid(all), nil
}

// GetValidRelationshipsByOrg scopes the same filter to an organization.
func (s *Store) GetValidRelationshipsByOrg(ctx context.Context, user string, orgID uuid.UUID) ([]models.Relationship, error) {
	all, err := s.repo.FindByUserAndOrg(ctx, user, orgID)
	if err != nil {
		return nil, err
	}
	return filterValid(all), nil
}

// ListAllValid returns the full valid tuple set, the graph-builder's
// working set for C6.
func (s *Store) ListAllValid(ctx context.Context) ([]models.Relationship, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filterValid(all), nil
}

func filterValid(all []models.Relationship) []models.Relationship {
	now := time.Now().UTC()
	valid := make([]models.Relationship, 0, len(all))
	for _, r := range all {
		if r.IsValid(now) {
			valid = append(valid, r)
		}
	}
	return valid
}
