// Package auth provides the authentication middleware for the web
// application.
//
// The middleware validates the session token carried by the request
// (cookie first, Authorization bearer header second) and attaches the
// derived principal to fiber.Locals. Unauthenticated and failed requests
// are downgraded to the anonymous principal rather than rejected;
// individual routes opt into stricter checks with RequireAuth and
// RequireAdmin.
//
// Usage:
//
//	app.Use(authmiddleware.Middleware(sessionManager, groupStore))
package auth
