// Package relationship implements the Zanzibar tuple store (C4, C5):
// persisting (user, relation, object) grants and reading back the
// valid subset a permission check depends on.
package relationship

import (
	"context"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/authcore/shared/models"
)

// Repository is the persistence port backing RelationshipStore,
// grounded on original_source's RelationshipRepository trait.
type Repository interface {
	Create(ctx context.Context, rel *models.Relationship) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	FindByUser(ctx context.Context, user string) ([]models.Relationship, error)
	FindByObject(ctx context.Context, object string) ([]models.Relationship, error)
	FindByUserAndRelation(ctx context.Context, user, relation string) ([]models.Relationship, error)
	FindByTuple(ctx context.Context, user, relation, object string) (*models.Relationship, error)
	FindByUserAndOrg(ctx context.Context, user string, orgID uuid.UUID) ([]models.Relationship, error)
	FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Relationship, error)
	Update(ctx context.Context, rel *models.Relationship) error
	ListAll(ctx context.Context) ([]models.Relationship, error)
}
