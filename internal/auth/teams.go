package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// GraphClient fetches directory group names for a user object. The
// concrete transport lives with the caller; tests supply a stub.
type GraphClient interface {
	UserGroups(ctx context.Context, accessToken, objectID string) ([]string, error)
}

// TeamsProvider validates Microsoft Entra ID tokens presented by the
// Teams client. Verification runs against the tenant JWKS endpoint
// directly because the token is issued out of band, there is no
// authorization code flow on our side.
type TeamsProvider struct {
	cfg      config.Teams
	verifier *oidc.IDTokenVerifier
	graph    GraphClient
}

type teamsClaims struct {
	ObjectID          string `json:"oid"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	UPN               string `json:"upn"`
}

// NewTeamsProvider builds a verifier for the configured tenant. The
// graph client may be nil when group fetching is disabled.
func NewTeamsProvider(ctx context.Context, cfg config.Teams, graph GraphClient) *TeamsProvider {
	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", cfg.TenantID)
	}

	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	verifier := oidc.NewVerifier(
		fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", cfg.TenantID),
		keySet,
		&oidc.Config{ClientID: cfg.ClientID},
	)

	return &TeamsProvider{cfg: cfg, verifier: verifier, graph: graph}
}

// Exchange verifies a Teams-issued token and normalizes it into an
// Identity. When group fetching is enabled, Graph failures degrade to an
// identity without external groups instead of failing the login.
func (p *TeamsProvider) Exchange(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify Teams token")
	}

	var claims teamsClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse Teams token claims")
	}

	if claims.ObjectID == "" {
		return nil, errors.New("Teams token missing oid claim")
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.UPN
	}

	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}

	identity := &Identity{
		SubjectID: claims.ObjectID,
		Username:  username,
		Email:     email,
		Name:      claims.Name,
		Method:    models.AuthMethodTeams,
		Provider:  p.cfg.TenantID,
	}

	if p.cfg.FetchGraphGroups && p.graph != nil {
		groupNames, errGraph := p.graph.UserGroups(ctx, rawToken, claims.ObjectID)
		if errGraph != nil {
			log.Warn().Err(errGraph).Str("oid", claims.ObjectID).Msg("graph group lookup failed")
		} else {
			identity.ExternalGroups = groupNames
		}
	}

	return identity, nil
}
