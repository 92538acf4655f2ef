package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
	"github.com/suleymanmyradov/authcore/shared/repository"
)

const (
	insertRefreshTokenQuery = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at, is_revoked)
		VALUES (:id, :user_id, :token_hash, :expires_at, :created_at, false)`

	selectRefreshTokenByHashQuery = `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at, is_revoked
		FROM refresh_tokens WHERE token_hash = $1`

	revokeRefreshTokenQuery = `
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = $2 WHERE id = $1`

	revokeAllForUserQuery = `
		UPDATE refresh_tokens SET is_revoked = true, revoked_at = $2
		WHERE user_id = $1 AND is_revoked = false`

	deleteExpiredRefreshTokensQuery = `
		DELETE FROM refresh_tokens WHERE expires_at < $1`
)

// PostgresRepository is the sqlx-backed RefreshTokenRepository,
// grounded on the teacher's shared/repository.BaseRepository.
type PostgresRepository struct {
	*repository.BaseRepository
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{BaseRepository: repository.NewBaseRepository(db)}
}

func (r *PostgresRepository) Store(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	row := struct {
		ID        uuid.UUID `db:"id"`
		UserID    uuid.UUID `db:"user_id"`
		TokenHash string    `db:"token_hash"`
		ExpiresAt time.Time `db:"expires_at"`
		CreatedAt time.Time `db:"created_at"`
	}{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return r.Create(ctx, insertRefreshTokenQuery, row)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.GetByID(ctx, &rt, selectRefreshTokenByHashQuery, tokenHash); err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB().ExecContext(ctx, revokeRefreshTokenQuery, id, time.Now().UTC())
	if err != nil {
		return apperrors.Wrap(apperrors.Database, "failed to revoke refresh token", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB().ExecContext(ctx, revokeAllForUserQuery, userID, time.Now().UTC())
	if err != nil {
		return apperrors.Wrap(apperrors.Database, "failed to revoke refresh tokens for user", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.DB().ExecContext(ctx, deleteExpiredRefreshTokensQuery, time.Now().UTC())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Database, "failed to delete expired refresh tokens", err)
	}
	return result.RowsAffected()
}
