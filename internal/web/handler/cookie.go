package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
)

// SetSessionCookie attaches the signed session token to the response.
// The cookie is http-only; browser clients never read the token.
func SetSessionCookie(c *fiber.Ctx, cfg *config.Config, token string, lifetime time.Duration) {
	cookie := &fiber.Cookie{
		Name:     session.CookieName,
		Value:    token,
		MaxAge:   int(lifetime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if cfg.DevMode {
		cookie.Secure = false
	}

	c.Cookie(cookie)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    "",
		MaxAge:   -1,
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// TokenFromRequest extracts the session token, cookie first, then the
// Authorization bearer header. Empty when the request carries neither.
func TokenFromRequest(c *fiber.Ctx) string {
	if token := c.Cookies(session.CookieName); token != "" {
		return token
	}

	const bearerPrefix = "Bearer "

	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > len(bearerPrefix) && authHeader[:len(bearerPrefix)] == bearerPrefix {
		return authHeader[len(bearerPrefix):]
	}

	return ""
}
