// Package config enumerates the configuration surface of authcore,
// following the teacher's nested-struct-with-env-tags convention
// (shared/config/config.go, services/.../auth/rpc/internal/config).
package config

import (
	"time"

	"github.com/suleymanmyradov/authcore/third_party/database"
)

// JWTConfig covers C8 (TokenManager).
type JWTConfig struct {
	Secret           string `json:",env=JWT_SECRET"`
	Issuer           string `json:",env=JWT_ISSUER"`
	AccessTTLSeconds int64  `json:",env=JWT_ACCESS_TTL_SECONDS"`
}

// AccessTTL returns the configured access-token lifetime.
func (c JWTConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

// RefreshTTL is fixed at 7 days per spec §4.7.
const RefreshTTL = 7 * 24 * time.Hour

// SessionConfig covers C10 (SessionService).
type SessionConfig struct {
	TTLHours int64 `json:",env=SESSION_TTL_HOURS"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// GraphCacheConfig covers C6 (AuthorizationGraph).
type GraphCacheConfig struct {
	TTLSeconds int64 `json:",env=GRAPH_CACHE_TTL_SECONDS"`
	MaxDepth   int   `json:",env=GRAPH_CACHE_MAX_DEPTH"`
}

func (c GraphCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// VaultConfig covers C1.
type VaultConfig struct {
	Addr      string `json:",env=VAULT_ADDR"`
	Token     string `json:",env=VAULT_TOKEN"`
	MountPath string `json:",env=VAULT_MOUNT_PATH"`
}

// BcryptConfig covers the password-hashing cost used by boundary
// collaborators that hash credentials before handing them to the
// session/token layer.
type BcryptConfig struct {
	Cost int `json:",env=BCRYPT_COST"`
}

// Config is the single enumerated configuration surface for the
// authorization/encryption/session substrate, listing exactly the
// keys spec §6 names.
type Config struct {
	Database   database.PostgresConfig
	JWT        JWTConfig
	Session    SessionConfig
	GraphCache GraphCacheConfig
	Vault      VaultConfig
	Bcrypt     BcryptConfig
}

// DefaultBcryptCost matches spec §6's documented default.
const DefaultBcryptCost = 12

// DefaultGraphCacheTTL matches spec §4.5's documented default.
const DefaultGraphCacheTTL = 300 * time.Second

// DefaultMaxDepth matches spec §4.6's documented default.
const DefaultMaxDepth = 10
