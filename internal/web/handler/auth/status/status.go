// Package status reports the authentication state of the current
// request, distinguishing "no session" from "expired session" so clients
// can decide between silent anonymous access and a re-login prompt.
package status

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	coreauth "github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// Path is the auth status endpoint.
const Path = handler.AuthStatusPath

// Service is the status handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	sessions *session.Manager
	groups   *groups.Store
}

// Handler is the status handler.
var Handler = Service{}

// Init initializes the status handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, sessions *session.Manager, groupStore *groups.Store) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.sessions = sessions
	s.groups = groupStore

	app.Get(Path, s.Status)
}

// Status inspects the request token without enforcing expiry.
func (s *Service) Status(c *fiber.Ctx) error {
	token := handler.TokenFromRequest(c)
	if token == "" {
		return c.JSON(fiber.Map{
			"authenticated": false,
			"user":          handler.PrincipalJSON(coreauth.AnonymousPrincipal(s.groups)),
		})
	}

	principal, _, err := s.sessions.Inspect(token)

	switch {
	case err == nil:
		return c.JSON(fiber.Map{
			"authenticated": true,
			"user":          handler.PrincipalJSON(principal),
		})
	case errors.Is(err, session.ErrTokenExpired):
		return c.JSON(fiber.Map{
			"authenticated": false,
			"expired":       true,
			"user":          handler.PrincipalJSON(principal),
		})
	case errors.Is(err, coreauth.ErrServiceUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "authentication temporarily unavailable")
	default:
		handler.ClearSessionCookie(c)

		return c.JSON(fiber.Map{
			"authenticated": false,
			"user":          handler.PrincipalJSON(coreauth.AnonymousPrincipal(s.groups)),
		})
	}
}
