// Package teams provides the Microsoft Teams SSO token exchange
// endpoint. The Teams client obtains a token from Entra ID out of band
// and trades it here for a gateway session.
package teams

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// Path is the Teams token exchange endpoint.
const Path = handler.APIPath + "/auth/teams/exchange"

// Service is the Teams auth handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.TeamsProvider
	auth     *auth.Reconciler
	sessions *session.Manager
	validate *validator.Validate
}

// Handler is the Teams auth handler.
var Handler = Service{}

type exchangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// Init initializes the Teams auth handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, provider *auth.TeamsProvider, reconciler *auth.Reconciler, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.Teams.Enabled || provider == nil {
		log.Info().Msg("Teams authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = provider
	s.auth = reconciler
	s.sessions = sessions
	s.validate = validator.New()

	app.Post(Path, s.Exchange)
}

// Exchange verifies the Teams-issued token and issues a session token.
func (s *Service) Exchange(c *fiber.Ctx) error {
	var req exchangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}

	identity, err := s.provider.Exchange(c.Context(), req.Token)
	if err != nil {
		auth.RecordAttempt("teams", "failure")
		log.Warn().Err(err).Msg("Teams token verification failed")

		return fiber.NewError(fiber.StatusUnauthorized, "authentication failed")
	}

	principal, err := s.auth.Reconcile(identity, s.cfg.Auth.Teams.SelfSignup)
	if err != nil {
		auth.RecordAttempt("teams", "failure")
		return handler.AuthError(err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.Teams.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	handler.SetSessionCookie(c, s.cfg, token, lifetime)
	auth.RecordAttempt("teams", "success")

	log.Info().Str("username", principal.Username).Msg("user logged in via Teams SSO")

	return c.JSON(fiber.Map{
		"token": token,
		"user":  handler.PrincipalJSON(principal),
	})
}
