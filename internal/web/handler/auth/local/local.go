// Package local provides the JSON login endpoint for local database
// accounts, with optional TOTP second factor and self-service signup.
package local

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

// Path is the base path for local authentication.
const Path = handler.APIPath + "/auth/local"

// Service is the local auth handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.LocalProvider
	auth     *auth.Reconciler
	sessions *session.Manager
	validate *validator.Validate
}

// Handler is the local auth handler.
var Handler = Service{}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name"`
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Init initializes the local auth handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, reconciler *auth.Reconciler, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.Local.Enabled {
		log.Info().Msg("local authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = auth.NewLocalProvider(db)
	s.auth = reconciler
	s.sessions = sessions
	s.validate = validator.New()

	app.Post(Path+"/login", s.Login)
	app.Post(Path+"/password", authmw.RequireAuth(), s.ChangePassword)

	if cfg.Auth.Local.SelfSignup {
		app.Post(Path+"/register", s.Register)
	}
}

// Login authenticates username/password (and TOTP when enrolled) and
// issues a session token.
func (s *Service) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "username and password are required")
	}

	identity, err := s.provider.Authenticate(req.Username, req.Password, req.OTP)
	if err != nil {
		auth.RecordAttempt("local", "failure")
		return handler.AuthError(err)
	}

	principal, err := s.auth.Reconcile(identity, s.cfg.Auth.Local.SelfSignup)
	if err != nil {
		auth.RecordAttempt("local", "failure")
		return handler.AuthError(err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.Local.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	handler.SetSessionCookie(c, s.cfg, token, lifetime)
	auth.RecordAttempt("local", "success")

	log.Info().Str("username", principal.Username).Msg("user logged in via local auth")

	return c.JSON(fiber.Map{
		"token": token,
		"user":  handler.PrincipalJSON(principal),
	})
}

// Register creates a new local account. Only reachable when self signup
// is enabled.
func (s *Service) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid registration data")
	}

	acc, err := s.provider.CreateUser(req.Username, req.Email, req.Password, req.Name, nil)
	if err != nil {
		return fiber.NewError(fiber.StatusConflict, "username already taken")
	}

	log.Info().Str("username", acc.Username).Msg("local account registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":       acc.ID,
		"username": acc.Username,
	})
}

// ChangePassword updates the password of the authenticated user.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	var req passwordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "new password too short")
	}

	principal := authmw.Principal(c)

	if err := s.provider.ChangePassword(principal.Username, req.OldPassword, req.NewPassword); err != nil {
		return handler.AuthError(err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
