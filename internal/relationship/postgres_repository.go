package relationship

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/shared/repository"
)

// PostgresRepository is the sqlx-backed Repository implementation,
// grounded on original_source's RelationshipRepositoryImpl and the
// teacher's shared/repository.BaseRepository query style.
type PostgresRepository struct {
	*repository.BaseRepository
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{BaseRepository: repository.NewBaseRepository(db)}
}

const createRelationshipQuery = `
INSERT INTO relationships (
	id, user_subject, relation, object, organization_id, created_at, updated_at,
	valid_from, expires_at, is_active, metadata, deleted_at, deleted_by,
	request_id, created_by, updated_by, system_id, version
)
VALUES (
	:id, :user_subject, :relation, :object, :organization_id, :created_at, :updated_at,
	:valid_from, :expires_at, :is_active, :metadata, :deleted_at, :deleted_by,
	:request_id, :created_by, :updated_by, :system_id, :version
)
ON CONFLICT (user_subject, relation, object, organization_id) WHERE deleted_at IS NULL
DO UPDATE SET updated_at = EXCLUDED.updated_at, version = relationships.version + 1
`

func (r *PostgresRepository) Create(ctx context.Context, rel *models.Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	return r.BaseRepository.Create(ctx, createRelationshipQuery, rel)
}

const selectRelationshipColumns = `
id, user_subject, relation, object, organization_id, created_at, updated_at,
valid_from, expires_at, is_active, metadata, deleted_at, deleted_by,
request_id, created_by, updated_by, system_id, version
`

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	var rel models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE id = $1 AND deleted_at IS NULL"
	if err := r.GetByID(ctx, &rel, query, id); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, user string) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE user_subject = $1 ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query, user); err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *PostgresRepository) FindByObject(ctx context.Context, object string) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE object = $1 ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query, object); err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *PostgresRepository) FindByUserAndRelation(ctx context.Context, user, relation string) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE user_subject = $1 AND relation = $2 ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query, user, relation); err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *PostgresRepository) FindByTuple(ctx context.Context, user, relation, object string) (*models.Relationship, error) {
	var rel models.Relationship
	query := "SELECT " + selectRelationshipColumns + ` FROM relationships
		WHERE user_subject = $1 AND object = $2 AND relation = $3 AND deleted_at IS NULL`
	if err := r.GetByID(ctx, &rel, query, user, object, relation); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *PostgresRepository) FindByUserAndOrg(ctx context.Context, user string, orgID uuid.UUID) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE user_subject = $1 AND organization_id = $2 ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query, user, orgID); err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *PostgresRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE organization_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query, orgID); err != nil {
		return nil, err
	}
	return rels, nil
}

const updateRelationshipQuery = `
UPDATE relationships SET
	valid_from = :valid_from, expires_at = :expires_at, is_active = :is_active,
	metadata = :metadata, deleted_at = :deleted_at, deleted_by = :deleted_by,
	request_id = :request_id, updated_at = :updated_at, updated_by = :updated_by,
	system_id = :system_id, version = version + 1
WHERE id = :id
`

func (r *PostgresRepository) Update(ctx context.Context, rel *models.Relationship) error {
	_, err := r.BaseRepository.Update(ctx, updateRelationshipQuery, rel)
	return err
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]models.Relationship, error) {
	var rels []models.Relationship
	query := "SELECT " + selectRelationshipColumns + " FROM relationships WHERE deleted_at IS NULL ORDER BY created_at DESC"
	if err := r.List(ctx, &rels, query); err != nil {
		return nil, err
	}
	return rels, nil
}
