package auth

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/oauthclient"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
)

// ClientCredentialsProvider authenticates machine clients with the
// OAuth2 client-credentials grant. Clients do not pass through account
// reconciliation; their permissions come straight off the client record.
type ClientCredentialsProvider struct {
	db *gorm.DB
}

// NewClientCredentialsProvider creates the provider.
func NewClientCredentialsProvider(db *gorm.DB) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{db: db}
}

// Authenticate verifies the client secret and builds a service
// principal. Suspended clients are reported distinctly so callers can
// answer with a meaningful error.
func (p *ClientCredentialsProvider) Authenticate(clientID, clientSecret string) (*Principal, error) {
	client, err := oauthclient.Find(p.db, clientID)
	if err != nil {
		if errors.Is(err, oauthclient.ErrClientNotFound) {
			return nil, ErrInvalidCredentials
		}

		log.Error().Err(err).Str("client_id", clientID).Msg("oauth client lookup failed")

		return nil, ErrServiceUnavailable
	}

	if !client.VerifySecret(clientSecret) {
		return nil, ErrInvalidCredentials
	}

	if !client.Active {
		return nil, ErrClientSuspended
	}

	return ClientPrincipal(client), nil
}

// ClientPrincipal builds a principal from a client record. Also used by
// session validation to refresh permissions from the live record.
func ClientPrincipal(client *models.OAuthClient) *Principal {
	return &Principal{
		ID:       client.ClientID,
		Username: client.ClientID,
		Name:     client.ClientID,
		Groups:   client.Scopes,
		Permissions: groups.Permissions{
			Apps:   resourceSetFromList(client.AllowedApps),
			Models: resourceSetFromList(client.AllowedModels),
		},
		Method: models.AuthMethodOAuthClient,
	}
}

func resourceSetFromList(ids []string) groups.ResourceSet {
	for _, id := range ids {
		if id == groups.Wildcard {
			return groups.ResourceSet{All: true}
		}
	}

	return groups.ResourceSet{IDs: ids}
}
