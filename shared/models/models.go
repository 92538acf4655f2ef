// Package models holds the persisted shapes shared across the
// relationship, encryption, token, and session components.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BaseModel carries the fields every persisted row has in common.
type BaseModel struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// JSONMap is a jsonb-backed metadata bag, used wherever the spec calls
// for "structured, optionally encrypted" metadata.
type JSONMap map[string]any

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var src []byte
	switch v := value.(type) {
	case []byte:
		src = v
	case string:
		src = []byte(v)
	default:
		*m = JSONMap{}
		return nil
	}
	if len(src) == 0 {
		*m = JSONMap{}
		return nil
	}
	out := JSONMap{}
	if err := json.Unmarshal(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(map[string]any(m))
}

// Relationship is the persisted form of a Zanzibar tuple
// (user, relation, object), see spec §3.
type Relationship struct {
	BaseModel
	User           string     `db:"user_subject" json:"user"`
	Relation       string     `db:"relation" json:"relation"`
	Object         string     `db:"object" json:"object"`
	OrganizationID *uuid.UUID `db:"organization_id" json:"organization_id"`
	ValidFrom      time.Time  `db:"valid_from" json:"valid_from"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at"`
	IsActive       bool       `db:"is_active" json:"is_active"`
	DeletedAt      *time.Time `db:"deleted_at" json:"deleted_at"`
	DeletedBy      *uuid.UUID `db:"deleted_by" json:"deleted_by"`
	Metadata       JSONMap    `db:"metadata" json:"metadata"`
	Version        int64      `db:"version" json:"version"`
	RequestID      *string    `db:"request_id" json:"request_id"`
	CreatedBy      *uuid.UUID `db:"created_by" json:"created_by"`
	UpdatedBy      *uuid.UUID `db:"updated_by" json:"updated_by"`
	SystemID       *string    `db:"system_id" json:"system_id"`
}

// IsValid implements the validity predicate from spec §3:
// is_active ∧ deleted_at = ∅ ∧ valid_from ≤ now < (expires_at ?? ∞).
func (r *Relationship) IsValid(now time.Time) bool {
	if !r.IsActive || r.DeletedAt != nil {
		return false
	}
	if r.ValidFrom.After(now) {
		return false
	}
	if r.ExpiresAt != nil && !now.Before(*r.ExpiresAt) {
		return false
	}
	return true
}

// Tuple returns the canonical textual form "user#relation@object".
func (r *Relationship) Tuple() string {
	return r.User + "#" + r.Relation + "@" + r.Object
}

// EncryptionKey is the wrapped-DEK metadata index row, see spec §3/§4.3.
// The Vault copy of the wrapped DEK is authoritative; this row mirrors
// it for lookups and rotation bookkeeping.
type EncryptionKey struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	EntityID      string     `db:"entity_id" json:"entity_id"`
	EntityType    string     `db:"entity_type" json:"entity_type"`
	EncryptedKey  []byte     `db:"encrypted_key" json:"-"`
	Nonce         []byte     `db:"nonce" json:"-"`
	KeyAlgorithm  string     `db:"key_algorithm" json:"key_algorithm"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	RotatedAt     *time.Time `db:"rotated_at" json:"rotated_at"`
	IsActive      bool       `db:"is_active" json:"is_active"`
}

// Session is the lifecycle row described in spec §3: ghost → authenticated → ended.
type Session struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SessionToken    string     `db:"session_token" json:"-"`
	UserID          *uuid.UUID `db:"user_id" json:"user_id"`
	OrganizationID  *uuid.UUID `db:"organization_id" json:"organization_id"`
	IPAddress       string     `db:"ip_address" json:"ip_address"`
	UserAgent       *string    `db:"user_agent" json:"user_agent"`
	StartedAt       time.Time  `db:"started_at" json:"started_at"`
	AuthenticatedAt *time.Time `db:"authenticated_at" json:"authenticated_at"`
	LastActivityAt  time.Time  `db:"last_activity_at" json:"last_activity_at"`
	ExpiresAt       time.Time  `db:"expires_at" json:"expires_at"`
	EndedAt         *time.Time `db:"ended_at" json:"ended_at"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	Metadata        JSONMap    `db:"metadata" json:"metadata"`
	Version         int64      `db:"version" json:"version"`
}

// IsExpired reports whether now has passed the session's expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsLive reports the predicate from spec §8:
// is_active ∧ now < expires_at ∧ ended_at = ∅.
func (s *Session) IsLive(now time.Time) bool {
	return s.IsActive && s.EndedAt == nil && !s.IsExpired(now)
}

// RefreshToken stores only the SHA-256 hash of the bearer string,
// never the plaintext, per spec §3.
type RefreshToken struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at"`
	IsRevoked bool       `db:"is_revoked" json:"is_revoked"`
}

func (t *RefreshToken) IsLive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
