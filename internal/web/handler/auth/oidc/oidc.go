package oidc

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
	"github.com/intrafind/ihub-apps-sub012/internal/web/state"
)

const (
	// LoginPath initiates the OIDC login flow for a named provider.
	LoginPath = handler.APIPath + "/auth/oidc/:provider/login"

	// CallbackPath receives the provider redirect.
	CallbackPath = handler.APIPath + "/auth/oidc/:provider/callback"
)

// Service is the OIDC handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	registry *auth.OIDCRegistry
	auth     *auth.Reconciler
	sessions *session.Manager
}

// Handler is the OIDC handler.
var Handler = Service{}

// Init initializes the OIDC handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, registry *auth.OIDCRegistry, reconciler *auth.Reconciler, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.OIDC.Enabled {
		log.Info().Msg("OIDC authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.registry = registry
	s.auth = reconciler
	s.sessions = sessions

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
}

// Login generates a state token and redirects to the provider.
func (s *Service) Login(c *fiber.Ctx) error {
	provider := s.registry.Provider(c.Params("provider"))
	if provider == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown OIDC provider")
	}

	stateToken := auth.GenerateStateToken()

	data := &state.Data{
		Provider: provider.Name(),
		Redirect: c.Query("redirect"),
	}

	if err := state.Put(stateToken, data, state.DefaultTTL); err != nil {
		log.Error().Err(err).Msg("failed to store login state")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	return c.Redirect(provider.AuthURL(stateToken))
}

// Callback verifies the state token, completes the code exchange and
// issues a session token.
func (s *Service) Callback(c *fiber.Ctx) error {
	provider := s.registry.Provider(c.Params("provider"))
	if provider == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown OIDC provider")
	}

	code := c.Query("code")
	stateToken := c.Query("state")

	if code == "" || stateToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing code or state")
	}

	data, err := state.Take(stateToken)
	if err != nil || data.Provider != provider.Name() {
		log.Warn().Err(err).Msg("OIDC callback with unknown or foreign state token")
		return fiber.NewError(fiber.StatusBadRequest, "invalid state token")
	}

	identity, err := provider.HandleCallback(c.Context(), code)
	if err != nil {
		auth.RecordAttempt("oidc", "failure")
		log.Warn().Err(err).Str("provider", provider.Name()).Msg("OIDC code exchange failed")

		return fiber.NewError(fiber.StatusUnauthorized, "authentication failed")
	}

	principal, err := s.auth.Reconcile(identity, provider.SelfSignup())
	if err != nil {
		auth.RecordAttempt("oidc", "failure")
		return handler.AuthError(err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.OIDC.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	handler.SetSessionCookie(c, s.cfg, token, lifetime)
	auth.RecordAttempt("oidc", "success")

	log.Info().Str("username", principal.Username).Str("provider", provider.Name()).
		Msg("user logged in via OIDC")

	if data.Redirect != "" && data.Redirect[0] == '/' {
		return c.Redirect(data.Redirect)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  handler.PrincipalJSON(principal),
	})
}
