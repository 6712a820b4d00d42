package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
)

// AuthError converts an authentication error into the matching fiber
// error. Credential problems stay deliberately vague.
func AuthError(err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrClientRotated):
		return fiber.NewError(fiber.StatusUnauthorized, "credentials rotated")
	case errors.Is(err, auth.ErrAccountDisabled):
		return fiber.NewError(fiber.StatusForbidden, "account disabled")
	case errors.Is(err, auth.ErrClientSuspended):
		return fiber.NewError(fiber.StatusForbidden, "client suspended")
	case errors.Is(err, auth.ErrRegistrationNotAllowed):
		return fiber.NewError(fiber.StatusForbidden, "registration not allowed")
	case errors.Is(err, auth.ErrServiceUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "authentication temporarily unavailable")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}

// PrincipalJSON is the wire shape of an authenticated principal.
func PrincipalJSON(p *auth.Principal) fiber.Map {
	return fiber.Map{
		"id":           p.ID,
		"username":     p.Username,
		"name":         p.Name,
		"email":        p.Email,
		"groups":       p.Groups,
		"authMode":     string(p.Method),
		"authProvider": p.Provider,
		"permissions": fiber.Map{
			"apps":        p.Permissions.Apps,
			"prompts":     p.Permissions.Prompts,
			"models":      p.Permissions.Models,
			"adminAccess": p.Permissions.AdminAccess,
		},
	}
}
