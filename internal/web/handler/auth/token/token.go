// Package token implements the OAuth2 token endpoint for the
// client-credentials grant used by machine clients.
package token

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// Path is the OAuth2 token endpoint.
const Path = handler.APIPath + "/auth/token"

// Service is the token endpoint handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.ClientCredentialsProvider
	sessions *session.Manager
}

// Handler is the token endpoint handler.
var Handler = Service{}

type tokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

// Init initializes the token endpoint handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.OAuth.Enabled {
		log.Info().Msg("client-credentials authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = auth.NewClientCredentialsProvider(db)
	s.sessions = sessions

	app.Post(Path, s.Token)
}

// Token verifies the client credentials and answers with a standard
// OAuth2 token response. No cookie is set; machine clients send the
// token as an Authorization bearer header.
func (s *Service) Token(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil {
		return oauthError(c, fiber.StatusBadRequest, "invalid_request")
	}

	if req.GrantType != "client_credentials" {
		return oauthError(c, fiber.StatusBadRequest, "unsupported_grant_type")
	}

	if req.ClientID == "" || req.ClientSecret == "" {
		return oauthError(c, fiber.StatusBadRequest, "invalid_request")
	}

	principal, err := s.provider.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		auth.RecordAttempt("oauth-client", "failure")
		return clientAuthError(c, err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.OAuth.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue client token")
		return oauthError(c, fiber.StatusInternalServerError, "server_error")
	}

	auth.RecordAttempt("oauth-client", "success")

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(lifetime.Seconds()),
	})
}

// clientAuthError maps provider errors onto RFC 6749 error codes.
func clientAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return oauthError(c, fiber.StatusUnauthorized, "invalid_client")
	case errors.Is(err, auth.ErrClientSuspended):
		return oauthError(c, fiber.StatusForbidden, "unauthorized_client")
	case errors.Is(err, auth.ErrServiceUnavailable):
		return oauthError(c, fiber.StatusServiceUnavailable, "temporarily_unavailable")
	default:
		return oauthError(c, fiber.StatusInternalServerError, "server_error")
	}
}

func oauthError(c *fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
