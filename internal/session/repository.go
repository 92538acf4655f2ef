// Package session implements the session lifecycle manager (C9
// sessions, C10), grounded on original_source's session_service.rs
// and session_repository_impl.rs.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/suleymanmyradov/authcore/shared/models"
)

// Repository is the durable store for session rows, a close port of
// original_source's SessionRepository trait.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	// Update performs an optimistic-concurrency guarded write: it
	// matches the observed version in the WHERE clause, bumps it, and
	// returns (updated, nil) on success or (nil, nil) when the WHERE
	// clause matched zero rows (a benign race the caller may treat as
	// a no-op).
	Update(ctx context.Context, s *models.Session) (*models.Session, error)
	EndSession(ctx context.Context, id uuid.UUID) error
	CleanupExpired(ctx context.Context) (int64, error)
}
