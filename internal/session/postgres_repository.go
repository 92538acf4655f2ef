package session

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zeromicro/go-zero/core/logx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/shared/repository"
)

const (
	insertSessionQuery = `
		INSERT INTO sessions (
			id, session_token, user_id, organization_id, ip_address, user_agent,
			started_at, authenticated_at, last_activity_at, expires_at, ended_at,
			is_active, metadata, version
		) VALUES (
			:id, :session_token, :user_id, :organization_id, :ip_address::inet, :user_agent,
			:started_at, :authenticated_at, :last_activity_at, :expires_at, :ended_at,
			:is_active, :metadata, :version
		)`

	selectSessionColumns = `
		id, session_token, user_id, organization_id, ip_address::text AS ip_address, user_agent,
		started_at, authenticated_at, last_activity_at, expires_at, ended_at,
		is_active, metadata, version`

	selectSessionByTokenQuery = "SELECT " + selectSessionColumns + " FROM sessions WHERE session_token = $1 AND is_active = true"
	selectSessionByIDQuery    = "SELECT " + selectSessionColumns + " FROM sessions WHERE id = $1"
	selectActiveByUserQuery   = "SELECT " + selectSessionColumns + " FROM sessions WHERE user_id = $1 AND is_active = true ORDER BY last_activity_at DESC"

	updateSessionQuery = `
		UPDATE sessions
		SET session_token = $2, user_id = $3, organization_id = $4, ip_address = $5::inet,
		    user_agent = $6, started_at = $7, authenticated_at = $8, last_activity_at = $9,
		    expires_at = $10, ended_at = $11, is_active = $12, metadata = $13, version = $14
		WHERE id = $1 AND version = $15
		RETURNING ` + selectSessionColumns

	endSessionQuery = `
		UPDATE sessions
		SET ended_at = NOW(), is_active = false, version = version + 1
		WHERE id = $1`

	cleanupExpiredQuery = `
		UPDATE sessions
		SET ended_at = NOW(), is_active = false, version = version + 1
		WHERE is_active = true AND expires_at < NOW()`
)

// PostgresRepository is the sqlx-backed Repository, grounded on
// original_source's SessionRepositoryImpl and the teacher's
// shared/repository.BaseRepository.
type PostgresRepository struct {
	*repository.BaseRepository
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.BaseRepository.Create(ctx, insertSessionQuery, s)
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	if err := r.GetByID(ctx, &s, selectSessionByTokenQuery, token); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	var s models.Session
	if err := r.GetByID(ctx, &s, selectSessionByIDQuery, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	if err := r.List(ctx, &sessions, selectActiveByUserQuery, userID); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Update bumps version and writes the row guarded by the observed
// version; a zero-row match (lost optimistic-concurrency race) is
// reported as (nil, nil), not an error — callers decide whether that
// is fatal (authenticate) or benign (update_activity).
func (r *PostgresRepository) Update(ctx context.Context, s *models.Session) (*models.Session, error) {
	observedVersion := s.Version
	next := *s
	next.Version = observedVersion + 1

	var updated models.Session
	err := r.DB().QueryRowxContext(ctx, updateSessionQuery,
		next.ID, next.SessionToken, next.UserID, next.OrganizationID, next.IPAddress,
		next.UserAgent, next.StartedAt, next.AuthenticatedAt, next.LastActivityAt,
		next.ExpiresAt, next.EndedAt, next.IsActive, next.Metadata, next.Version,
		observedVersion,
	).StructScan(&updated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logx.WithContext(ctx).Errorf("failed to update session %s: %v", s.ID, err)
		return nil, apperrors.Wrap(apperrors.Database, "failed to update session", err)
	}
	return &updated, nil
}

func (r *PostgresRepository) EndSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB().ExecContext(ctx, endSessionQuery, id)
	if err != nil {
		return apperrors.Wrap(apperrors.Database, "failed to end session", err)
	}
	return nil
}

func (r *PostgresRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.DB().ExecContext(ctx, cleanupExpiredQuery)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Database, "failed to clean up expired sessions", err)
	}
	return result.RowsAffected()
}
