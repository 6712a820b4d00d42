package config

import (
	"time"

	"github.com/intrafind/ihub-apps-sub012/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Auth      Auth
}

// Webserver implement webserver settings.
type Webserver struct {
	CleanPath      bool   // use clean path middleware to allow multi slash requests
	DisableRecover bool   // disable recover middleware
	Domain         string // domain name for the webserver
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
}

// Auth holds the full authentication configuration surface.
type Auth struct {
	// Secret signs internal session tokens (HS256). Required.
	Secret string
	// SessionTimeoutMinutes is the default session token lifetime.
	SessionTimeoutMinutes int
	// AnonymousGroups are the baseline groups attached to unauthenticated
	// principals and used as the mapping fallback.
	AnonymousGroups []string
	// CatalogPath points to the JSON group catalog file.
	CatalogPath string

	Local Local
	LDAP  LDAP
	OIDC  OIDC
	NTLM  NTLM
	Teams Teams
	OAuth OAuth
}

// Local configures local password authentication.
type Local struct {
	Enabled               bool
	SelfSignup            bool
	SessionTimeoutMinutes int // overrides Auth.SessionTimeoutMinutes when > 0
}

// LDAP configures directory bind authentication.
type LDAP struct {
	Enabled               bool
	SelfSignup            bool
	SessionTimeoutMinutes int
	Host                  string
	Port                  int
	UseSSL                bool
	UseTLS                bool
	SkipVerify            bool
	BindDN                string
	BindPassword          string
	BaseDN                string
	UserFilter            string
	GroupBaseDN           string
	GroupFilter           string
	UsernameAttr          string
	EmailAttr             string
	NameAttr              string
	GroupNameAttr         string
	Timeout               int
}

// OIDCProvider configures a single OpenID Connect identity provider.
type OIDCProvider struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	GroupsClaim  string
	SelfSignup   bool
}

// OIDC configures OpenID Connect authentication.
type OIDC struct {
	Enabled               bool
	SessionTimeoutMinutes int
	Providers             []OIDCProvider
}

// NTLM configures Windows integrated authentication.
type NTLM struct {
	Enabled               bool
	SelfSignup            bool
	SessionTimeoutMinutes int
	Domain                string
	// TimeoutSeconds bounds a single handshake round trip. Default 5.
	TimeoutSeconds int
}

// Teams configures Microsoft Teams SSO token exchange.
type Teams struct {
	Enabled               bool
	SelfSignup            bool
	SessionTimeoutMinutes int
	TenantID              string
	ClientID              string
	// JWKSURL overrides the tenant-derived JWKS endpoint (for testing).
	JWKSURL string
	// FetchGraphGroups enables the optional Graph group lookup.
	FetchGraphGroups bool
}

// OAuth configures the OAuth2 client-credentials grant.
type OAuth struct {
	Enabled               bool
	SessionTimeoutMinutes int
}

// DefaultSessionTimeoutMinutes is the session lifetime used when no
// timeout is configured (8 hours).
const DefaultSessionTimeoutMinutes = 480

// SessionTimeout returns the effective token lifetime for a mode-specific
// override, falling back to the global default.
func (a Auth) SessionTimeout(modeMinutes int) time.Duration {
	minutes := a.SessionTimeoutMinutes
	if modeMinutes > 0 {
		minutes = modeMinutes
	}

	if minutes <= 0 {
		minutes = DefaultSessionTimeoutMinutes
	}

	return time.Duration(minutes) * time.Minute
}
