package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// OAuthClient is the persisted machine identity for the client-credentials
// grant. Allowed apps/models/scopes are never embedded in issued tokens;
// they are read back from this record at validation time so narrowing a
// grant takes effect immediately.
type OAuthClient struct {
	// ClientID is the public client identifier.
	ClientID string `gorm:"primaryKey;size:100"`
	// Active gates token issuance and per-request validation.
	Active bool
	// SecretHash is the Argon2id hash of the client secret.
	SecretHash string `gorm:"size:255"`
	// AllowedApps limits which apps the client may call ("*" for all).
	AllowedApps []string `gorm:"serializer:json"`
	// AllowedModels limits which models the client may use ("*" for all).
	AllowedModels []string `gorm:"serializer:json"`
	// Scopes are the OAuth2 scopes grantable to this client.
	Scopes []string `gorm:"serializer:json"`
	// LastRotated stamps the newest secret rotation; tokens issued
	// before it are rejected.
	LastRotated time.Time
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
}

// TableName overrides GORM's pluralized default.
func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// HashClientSecret hashes a client secret using Argon2id.
func HashClientSecret(secret string) string {
	hash, err := argon2id.CreateHash(secret, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash client secret: %v", err)
	}

	return hash
}

// VerifySecret verifies a plaintext client secret against the stored hash.
func (c *OAuthClient) VerifySecret(secret string) bool {
	match, err := argon2id.ComparePasswordAndHash(secret, c.SecretHash)
	if err != nil {
		log.Error().Msgf("failed to verify client secret: %v", err)
		return false
	}

	return match
}
