// Package ldap provides the JSON login endpoint for directory accounts.
package ldap

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

// Path is the base path for LDAP authentication.
const Path = handler.APIPath + "/auth/ldap"

// Service is the LDAP auth handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.LDAPProvider
	auth     *auth.Reconciler
	sessions *session.Manager
	validate *validator.Validate
}

// Handler is the LDAP auth handler.
var Handler = Service{}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Init initializes the LDAP auth handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, reconciler *auth.Reconciler, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.LDAP.Enabled {
		log.Info().Msg("LDAP authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = auth.NewLDAPProvider(cfg.Auth.LDAP)
	s.auth = reconciler
	s.sessions = sessions
	s.validate = validator.New()

	app.Post(Path+"/login", s.Login)
}

// Login binds against the directory and issues a session token. The raw
// directory group names travel into the token as display groups;
// authorization uses their mapped internal groups.
func (s *Service) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
	}

	identity, err := s.provider.Authenticate(req.Username, req.Password)
	if err != nil {
		auth.RecordAttempt("ldap", "failure")
		return handler.AuthError(err)
	}

	principal, err := s.auth.Reconcile(identity, s.cfg.Auth.LDAP.SelfSignup)
	if err != nil {
		auth.RecordAttempt("ldap", "failure")
		return handler.AuthError(err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.LDAP.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	handler.SetSessionCookie(c, s.cfg, token, lifetime)
	auth.RecordAttempt("ldap", "success")

	log.Info().Str("username", principal.Username).Msg("user logged in via LDAP")

	return c.JSON(fiber.Map{
		"token": token,
		"user":  handler.PrincipalJSON(principal),
	})
}
