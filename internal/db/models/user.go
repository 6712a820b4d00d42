package models

import (
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// AuthMethod identifies how a principal authenticated.
type AuthMethod string

const (
	// AuthMethodLocal is local database password authentication.
	AuthMethodLocal AuthMethod = "local"
	// AuthMethodLDAP is LDAP / Active Directory bind authentication.
	AuthMethodLDAP AuthMethod = "ldap"
	// AuthMethodOIDC is OpenID Connect authentication.
	AuthMethodOIDC AuthMethod = "oidc"
	// AuthMethodNTLM is Windows integrated (NTLM) authentication.
	AuthMethodNTLM AuthMethod = "ntlm"
	// AuthMethodTeams is Microsoft Teams SSO token exchange.
	AuthMethodTeams AuthMethod = "teams"
	// AuthMethodOAuthClient is the OAuth2 client-credentials grant.
	AuthMethodOAuthClient AuthMethod = "oauth-client"
	// AuthMethodAnonymous marks an unauthenticated principal.
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// UserAccount is the persisted, admin-curated account record.
// External identities (LDAP, OIDC, NTLM, Teams) reconcile against it on
// every login; the admin-assigned InternalGroups and the Active flag are
// the authoritative server-side state honored by the per-request
// liveness re-check.
type UserAccount struct {
	// ID is a UUID assigned at creation.
	ID string `gorm:"primaryKey;size:36"`
	// Active gates login and per-request validation.
	Active bool
	// Username is the unique login / display handle.
	Username string `gorm:"unique;size:100;not null"`
	// Email is used as the secondary lookup key during reconciliation.
	Email string `gorm:"size:255;index"`
	// Name is the human display name.
	Name string `gorm:"size:255"`
	// InternalGroups are admin-assigned group ids, merged with mapped
	// external groups at authorization time.
	InternalGroups []string `gorm:"serializer:json"`
	// AuthMethods lists the methods this account may authenticate with.
	AuthMethods []string `gorm:"serializer:json"`
	// PasswordHash is the Argon2id (or legacy bcrypt) hash for local login.
	PasswordHash string `gorm:"size:255"`
	// TOTPSecret enables the optional second factor for local login.
	TOTPSecret string `gorm:"size:255"`
	// OIDCSubject links the account to an OIDC subject id.
	OIDCSubject string `gorm:"size:255;index"`
	// LDAPDN links the account to a directory entry.
	LDAPDN string `gorm:"size:255;index"`
	// NTLMAccount links the account to a DOMAIN\user identity.
	NTLMAccount string `gorm:"size:255;index"`
	// TeamsObjectID links the account to an Azure AD object id.
	TeamsObjectID string `gorm:"size:255;index"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
}

// TableName overrides GORM's pluralized default.
func (UserAccount) TableName() string {
	return "user_accounts"
}

// HasAuthMethod reports whether the account is allowed to authenticate
// with the given method.
func (u *UserAccount) HasAuthMethod(method AuthMethod) bool {
	for _, m := range u.AuthMethods {
		if m == string(method) {
			return true
		}
	}

	return false
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the stored hash.
// Argon2id is the native format; bcrypt hashes imported from the
// predecessor deployment verify transparently.
func (u *UserAccount) VerifyPassword(password string) bool {
	if isBcryptHash(u.PasswordHash) {
		return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
	}

	match, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
