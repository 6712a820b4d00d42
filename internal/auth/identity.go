package auth

import (
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
)

// Identity is the canonical per-authentication-attempt value produced by
// a normalizer. It is never persisted; reconciliation consumes it
// immediately.
type Identity struct {
	// SubjectID is the provider-scoped stable identifier: username for
	// local, DN for LDAP, sub claim for OIDC, DOMAIN\user for NTLM,
	// object id for Teams, client id for OAuth clients.
	SubjectID string
	// Username is the login handle proposed by the provider.
	Username string
	// Email as reported by the provider, may be empty.
	Email string
	// Name is the human display name.
	Name string
	// ExternalGroups are the raw group labels as reported by the
	// provider, meaningful only after mapping.
	ExternalGroups []string
	// Method identifies the authentication source.
	Method models.AuthMethod
	// Provider distinguishes instances within a method (OIDC provider
	// name, LDAP host, Teams tenant).
	Provider string
	// Raw keeps the source payload for debugging; never trusted.
	Raw map[string]interface{}
}

// Principal is the authorization-bearing identity attached to a request
// after successful validation. Derived fresh each request, never persisted.
type Principal struct {
	ID       string
	Username string
	Name     string
	Email    string
	// Groups is the display/audit list: raw external labels first, then
	// internal group ids, deduplicated.
	Groups      []string
	Permissions groups.Permissions
	Method      models.AuthMethod
	Provider    string
}

// IsAnonymous reports whether the principal carries no authenticated
// identity.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.Method == models.AuthMethodAnonymous || p.Method == ""
}

// AnonymousPrincipal builds the unauthenticated principal with the
// configured baseline groups and their live permissions.
func AnonymousPrincipal(store *groups.Store) *Principal {
	baseline := store.AnonymousGroups()

	return &Principal{
		ID:          "anonymous",
		Username:    "anonymous",
		Groups:      append([]string{}, baseline...),
		Permissions: store.ResolvePermissions(baseline),
		Method:      models.AuthMethodAnonymous,
	}
}
