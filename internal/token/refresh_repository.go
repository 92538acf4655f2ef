package token

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/authcore/shared/models"
)

// RefreshTokenRepository is the durable store for refresh-token
// metadata (C9); the bearer string itself is never stored, only its
// SHA-256 hash, grounded on gourdiantoken's TokenRepository interface
// trimmed to the one backend this module keeps.
type RefreshTokenRepository interface {
	Store(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context) (int64, error)
}
