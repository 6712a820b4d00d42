package auth

import (
	"context"
	"sync/atomic"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/uniuri"
)

// OIDCProvider wraps a single configured OpenID Connect issuer.
type OIDCProvider struct {
	cfg      config.OIDCProvider
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth    oauth2.Config
}

// OIDCRegistry holds the active set of OIDC providers keyed by name.
// The set is swapped atomically on config reload so in-flight logins
// keep the provider they started with.
type OIDCRegistry struct {
	providers atomic.Pointer[map[string]*OIDCProvider]
}

// NewOIDCRegistry performs discovery against every configured issuer.
// Providers that fail discovery are skipped with a log entry rather than
// failing startup, so one unreachable issuer does not take down the rest.
func NewOIDCRegistry(ctx context.Context, cfg config.OIDC) *OIDCRegistry {
	r := &OIDCRegistry{}
	r.Reload(ctx, cfg)

	return r
}

// Reload rebuilds the provider set from fresh configuration.
func (r *OIDCRegistry) Reload(ctx context.Context, cfg config.OIDC) {
	providers := make(map[string]*OIDCProvider, len(cfg.Providers))

	for _, pc := range cfg.Providers {
		p, err := newOIDCProvider(ctx, pc)
		if err != nil {
			log.Error().Err(err).Str("provider", pc.Name).Msg("oidc discovery failed, provider disabled")
			continue
		}

		providers[pc.Name] = p
	}

	r.providers.Store(&providers)
}

// Provider returns the named provider or nil when unknown.
func (r *OIDCRegistry) Provider(name string) *OIDCProvider {
	providers := r.providers.Load()
	if providers == nil {
		return nil
	}

	return (*providers)[name]
}

// Names lists the active provider names.
func (r *OIDCRegistry) Names() []string {
	providers := r.providers.Load()
	if providers == nil {
		return nil
	}

	names := make([]string, 0, len(*providers))
	for name := range *providers {
		names = append(names, name)
	}

	return names
}

func newOIDCProvider(ctx context.Context, cfg config.OIDCProvider) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to discover OIDC provider")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCProvider{
		cfg:      cfg,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// Name returns the configured provider name.
func (p *OIDCProvider) Name() string {
	return p.cfg.Name
}

// SelfSignup reports whether this provider may create accounts on first login.
func (p *OIDCProvider) SelfSignup() bool {
	return p.cfg.SelfSignup
}

// AuthURL builds the authorization redirect URL for the given state.
func (p *OIDCProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// HandleCallback exchanges the authorization code, verifies the ID token
// and normalizes the claims into an Identity.
func (p *OIDCProvider) HandleCallback(ctx context.Context, code string) (*Identity, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "failed to exchange authorization code")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify ID token")
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse ID token claims")
	}

	return p.identityFromClaims(idToken.Subject, claims), nil
}

func (p *OIDCProvider) identityFromClaims(subject string, claims map[string]interface{}) *Identity {
	identity := &Identity{
		SubjectID:      subject,
		Username:       stringClaim(claims, "preferred_username"),
		Email:          stringClaim(claims, "email"),
		Name:           stringClaim(claims, "name"),
		ExternalGroups: p.groupsFromClaims(claims),
		Method:         models.AuthMethodOIDC,
		Provider:       p.cfg.Name,
		Raw:            claims,
	}

	if identity.Username == "" {
		identity.Username = identity.Email
	}

	if identity.Username == "" {
		identity.Username = subject
	}

	return identity
}

// groupsFromClaims reads the configured groups claim. Both array and
// single-string shapes occur in the wild.
func (p *OIDCProvider) groupsFromClaims(claims map[string]interface{}) []string {
	claimName := p.cfg.GroupsClaim
	if claimName == "" {
		claimName = "groups"
	}

	return stringSliceClaim(claims, claimName)
}

func stringClaim(claims map[string]interface{}, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}

	return ""
}

func stringSliceClaim(claims map[string]interface{}, name string) []string {
	switch v := claims[name].(type) {
	case []interface{}:
		groups := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok {
				groups = append(groups, s)
			}
		}

		return groups
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}

		return []string{v}
	default:
		return nil
	}
}

// stateTokenLen gives well over 128 bits of entropy for the login state.
const stateTokenLen = 32

// GenerateStateToken produces an unguessable value binding the
// authorization redirect to the callback.
func GenerateStateToken() string {
	return uniuri.NewLen(stateTokenLen)
}
