package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
	"github.com/suleymanmyradov/authcore/shared/models"
)

// Service implements the session lifecycle (C10): ghost →
// authenticated → ended, a close Go port of original_source's
// SessionService.
type Service struct {
	repo Repository
	cache *Cache
	ttl   time.Duration
}

func NewService(repo Repository, cache *Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// CreateOrGet looks up token in the cache, then the repository; an
// active, unexpired hit gets its activity stamped and is returned.
// Otherwise a ghost session (no user) is created.
func (s *Service) CreateOrGet(ctx context.Context, token, ip string, userAgent *string) (*models.Session, error) {
	now := time.Now().UTC()

	if cached, ok := s.cache.Get(token); ok && cached.IsLive(now) {
		cached.LastActivityAt = now
		updated, err := s.repo.Update(ctx, cached)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			s.cache.Set(token, *updated)
			return updated, nil
		}
		// lost the race; fall through to a fresh read from storage.
	}

	existing, err := s.repo.FindByToken(ctx, token)
	if err != nil && !apperrors.IsKind(err, apperrors.NotFound) {
		return nil, err
	}
	if existing != nil && existing.IsLive(now) {
		existing.LastActivityAt = now
		updated, err := s.repo.Update(ctx, existing)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			s.cache.Set(token, *updated)
			return updated, nil
		}
	}

	fresh := &models.Session{
		ID:             uuid.New(),
		SessionToken:   token,
		IPAddress:      ip,
		UserAgent:      userAgent,
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.ttl),
		IsActive:       true,
		Metadata:       models.JSONMap{},
		Version:        1,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		return nil, err
	}
	s.cache.Set(token, *fresh)
	return fresh, nil
}

// Authenticate links a user (and optionally an organization) to a
// ghost session. Requires the session to be active and unexpired.
func (s *Service) Authenticate(ctx context.Context, sessionID, userID uuid.UUID, orgID *uuid.UUID) (*models.Session, error) {
	existing, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !existing.IsActive {
		return nil, apperrors.Validationf("session is not active")
	}
	if existing.IsExpired(now) {
		return nil, apperrors.Validationf("session has expired")
	}

	existing.UserID = &userID
	existing.OrganizationID = orgID
	existing.AuthenticatedAt = &now
	existing.LastActivityAt = now

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.Conflictf("session was concurrently modified")
	}
	s.cache.Set(updated.SessionToken, *updated)
	return updated, nil
}

// UpdateActivity is a best-effort stamp, intended to be called from a
// background task per request; lost races against a concurrent update
// or deletion are silently tolerated.
func (s *Service) UpdateActivity(ctx context.Context, sessionID uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	if !existing.IsActive || existing.IsExpired(now) {
		return nil
	}
	existing.LastActivityAt = now

	updated, err := s.repo.Update(ctx, existing)
	if err != nil {
		logx.WithContext(ctx).Errorf("update_activity failed for session %s: %v", sessionID, err)
		return nil
	}
	if updated != nil {
		s.cache.Set(updated.SessionToken, *updated)
	}
	return nil
}

// End sets ended_at/is_active=false and removes the session from cache.
func (s *Service) End(ctx context.Context, sessionID uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.EndSession(ctx, sessionID); err != nil {
		return err
	}
	s.cache.Remove(existing.SessionToken)
	return nil
}

// GetActive returns the live session for token, or nil if absent,
// expired, or inactive.
func (s *Service) GetActive(ctx context.Context, token string) (*models.Session, error) {
	now := time.Now().UTC()
	if cached, ok := s.cache.Get(token); ok && cached.IsLive(now) {
		return cached, nil
	}

	existing, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !existing.IsLive(now) {
		return nil, nil
	}
	s.cache.Set(token, *existing)
	return existing, nil
}

// CleanupExpired marks every row past its expiry as ended and prunes
// the matching cache entries; idempotent, safe to run periodically.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.cache.CleanupExpired(time.Now().UTC())
	return count, nil
}
