package logout

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// Path is the logout endpoint.
const Path = handler.APIPath + "/auth/logout"

// Service is the logout handler service.
type Service struct {
	handler.Service
	cfg *config.Config
}

// Handler is the logout handler.
var Handler = Service{}

// Init initializes the logout handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config) {
	if app == nil || cfg == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg

	app.Post(Path, s.Logout)
}

// Logout clears the session cookie. Tokens held outside the cookie stay
// valid until they expire or the account is disabled; logout is a
// client-side affair for bearer clients.
func (s *Service) Logout(c *fiber.Ctx) error {
	handler.ClearSessionCookie(c)

	return c.JSON(fiber.Map{"status": "ok"})
}
