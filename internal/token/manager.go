// Package token implements the access/refresh JWT issuance and
// validation surface (C8) and the durable refresh-token store (C9),
// trimmed from gourdiantoken's symmetric-HMAC path.
package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/suleymanmyradov/authcore/shared/errors"
)

const audience = "auth-service"

// Claims is the access-token claim shape: sub, email, iat, exp, iss,
// aud, a random jti (so two tokens issued in the same second differ),
// plus the optional role/permissions carried for RBAC hints.
type Claims struct {
	Subject     string   `json:"sub"`
	Email       string   `json:"email"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Pair is an issued access/refresh token pair, alongside the refresh
// token's plaintext (only ever returned once — its hash is what gets
// persisted).
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager issues and validates HS256 access tokens and rotates
// refresh tokens, grounded on gourdiantoken's JWTMaker but cut down to
// the spec's symmetric-only, no-session-id, no-revocation-set surface.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	refresh    RefreshTokenRepository
}

func NewManager(secret, issuer string, accessTTL, refreshTTL time.Duration, refresh RefreshTokenRepository) *Manager {
	return &Manager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		refresh:    refresh,
	}
}

// IssueAccessToken signs a standalone access token for subject/email,
// with optional role/permissions.
func (m *Manager) IssueAccessToken(subject, email, role string, permissions []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(m.accessTTL)
	claims := Claims{
		Subject:     subject,
		Email:       email,
		Role:        role,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(apperrors.Internal, "failed to sign access token", err)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken validates signature, issuer, audience and
// expiration, returning the parsed claims.
func (m *Manager) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(audience))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Authentication, "invalid access token", err)
	}
	if !parsed.Valid {
		return nil, apperrors.Authenticationf("invalid access token")
	}
	return claims, nil
}

// IssueTokenPair issues a fresh access token and a fresh refresh
// token, persisting only the refresh token's SHA-256 hash.
func (m *Manager) IssueTokenPair(ctx context.Context, userID uuid.UUID, email, role string, permissions []string) (*Pair, error) {
	access, expiresAt, err := m.IssueAccessToken(userID.String(), email, role, permissions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	refreshExpiresAt := now.Add(m.refreshTTL)
	refreshClaims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID.String(),
		Issuer:    m.issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(refreshExpiresAt),
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	signedRefresh, err := refreshToken.SignedString(m.secret)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to sign refresh token", err)
	}

	if err := m.refresh.Store(ctx, userID, hashToken(signedRefresh), refreshExpiresAt); err != nil {
		return nil, err
	}

	return &Pair{AccessToken: access, RefreshToken: signedRefresh, ExpiresAt: expiresAt}, nil
}

// Refresh validates a refresh token end-to-end (spec §4.7): JWT
// signature/claims, then the stored hash must exist, be unrevoked,
// unexpired, and belong to the same subject. On success the old row
// is revoked and then a new pair is issued. The two steps are not
// atomic: if issuing the new pair fails, the old row stays revoked.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, email, role string, permissions []string) (*Pair, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(audience))
	if err != nil || !parsed.Valid {
		return nil, apperrors.Wrap(apperrors.Authentication, "invalid refresh token", err)
	}

	hash := hashToken(refreshToken)
	stored, err := m.refresh.FindByHash(ctx, hash)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			return nil, apperrors.Authenticationf("invalid refresh token")
		}
		return nil, err
	}
	if stored.IsRevoked {
		return nil, apperrors.Authenticationf("refresh token has been revoked")
	}
	now := time.Now().UTC()
	if !now.Before(stored.ExpiresAt) {
		return nil, apperrors.Authenticationf("refresh token has expired")
	}
	if claims.Subject != stored.UserID.String() {
		return nil, apperrors.Authenticationf("refresh token subject mismatch")
	}

	if err := m.refresh.Revoke(ctx, stored.ID); err != nil {
		return nil, err
	}

	return m.IssueTokenPair(ctx, stored.UserID, email, role, permissions)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
