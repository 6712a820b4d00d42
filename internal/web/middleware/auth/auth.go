package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	coreauth "github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// PrincipalKey is the fiber.Locals key holding the request principal.
const PrincipalKey = "principal"

// Middleware validates the session token on every request and attaches
// the resulting principal to the request context. Requests without a
// token, and requests with a malformed or tampered one, proceed as the
// anonymous principal. Revoked and expired tokens are rejected with
// their distinct reason so a client can tell a disabled account from a
// session that merely ran out.
func Middleware(manager *session.Manager, groupStore *groups.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := handler.TokenFromRequest(c)
		if token == "" {
			c.Locals(PrincipalKey, coreauth.AnonymousPrincipal(groupStore))
			return c.Next()
		}

		principal, err := manager.Validate(token)

		switch {
		case err == nil:
			c.Locals(PrincipalKey, principal)
		case errors.Is(err, coreauth.ErrServiceUnavailable):
			return fiber.NewError(fiber.StatusServiceUnavailable, "authentication temporarily unavailable")
		case c.Path() == handler.AuthStatusPath:
			// the status endpoint inspects the token itself and reports
			// expiry and revocation in its response body
			c.Locals(PrincipalKey, coreauth.AnonymousPrincipal(groupStore))
		case errors.Is(err, coreauth.ErrAccountDisabled),
			errors.Is(err, coreauth.ErrClientSuspended),
			errors.Is(err, coreauth.ErrClientRotated):
			log.Info().Err(err).Msg("revoked session token rejected")
			handler.ClearSessionCookie(c)
			return handler.AuthError(err)
		case errors.Is(err, session.ErrTokenExpired):
			handler.ClearSessionCookie(c)
			return fiber.NewError(fiber.StatusUnauthorized, "token expired")
		default:
			log.Debug().Err(err).Msg("session token rejected")
			handler.ClearSessionCookie(c)
			c.Locals(PrincipalKey, coreauth.AnonymousPrincipal(groupStore))
		}

		return c.Next()
	}
}

// Principal returns the request principal attached by Middleware.
func Principal(c *fiber.Ctx) *coreauth.Principal {
	if p, ok := c.Locals(PrincipalKey).(*coreauth.Principal); ok {
		return p
	}

	return nil
}

// RequireAuth rejects anonymous requests.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if Principal(c).IsAnonymous() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}

		return c.Next()
	}
}

// RequireAdmin rejects principals without the admin-access grant.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := Principal(c)
		if p.IsAnonymous() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}

		if !p.Permissions.AdminAccess {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}

		return c.Next()
	}
}
