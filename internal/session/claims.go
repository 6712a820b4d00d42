// Package session issues and validates the signed tokens that carry an
// authenticated principal between requests. Tokens are bearer
// credentials; validity is re-checked against the live account state on
// every request so disabling an account revokes its sessions
// immediately.
package session

import (
	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim stamped into every token.
const Issuer = "ihub-apps"

// CookieName is the cookie carrying the session token. The cookie takes
// priority over the Authorization header when both are present.
const CookieName = "authToken"

// Claims is the token payload. Subject holds the account id (or client
// id for machine clients); Groups is the display group list frozen at
// issue time, permissions are always re-derived from the live catalog.
type Claims struct {
	jwt.RegisteredClaims
	Username     string   `json:"username,omitempty"`
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	Groups       []string `json:"groups,omitempty"`
	AuthMode     string   `json:"authMode"`
	AuthProvider string   `json:"authProvider,omitempty"`
}
