// Package ntlm provides the Windows integrated authentication endpoint.
//
// The handshake rides on the Authorization header: the client sends a
// Type 1 message, receives the challenge in WWW-Authenticate, and
// completes with a Type 3 message on the same connection. A client that
// never completes the handshake simply stays anonymous.
package ntlm

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

// Path is the NTLM negotiation endpoint.
const Path = handler.APIPath + "/auth/ntlm"

const authPrefix = "NTLM "

// Service is the NTLM auth handler service.
type Service struct {
	handler.Service
	cfg      *config.Config
	provider *auth.NTLMProvider
	auth     *auth.Reconciler
	sessions *session.Manager
}

// Handler is the NTLM auth handler.
var Handler = Service{}

// Init initializes the NTLM auth handler.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, provider *auth.NTLMProvider, reconciler *auth.Reconciler, sessions *session.Manager) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if !cfg.Auth.NTLM.Enabled || provider == nil {
		log.Info().Msg("NTLM authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = provider
	s.auth = reconciler
	s.sessions = sessions

	app.Get(Path, s.Negotiate)
}

// Negotiate drives the challenge/response handshake.
func (s *Service) Negotiate(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, authPrefix) {
		return s.challenge(c, nil)
	}

	message, err := base64.StdEncoding.DecodeString(authHeader[len(authPrefix):])
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed NTLM message")
	}

	connID := strconv.FormatUint(c.Context().ConnID(), 10)

	msgType, err := s.provider.Codec().MessageType(message)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed NTLM message")
	}

	switch msgType {
	case 1:
		challengeMsg, errNeg := s.provider.Negotiate(connID, message)
		if errNeg != nil {
			auth.RecordAttempt("ntlm", "failure")
			return handler.AuthError(errNeg)
		}

		return s.challenge(c, challengeMsg)
	case 3:
		return s.complete(c, connID, message)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unexpected NTLM message type")
	}
}

func (s *Service) challenge(c *fiber.Ctx, challengeMsg []byte) error {
	value := "NTLM"
	if len(challengeMsg) > 0 {
		value += " " + base64.StdEncoding.EncodeToString(challengeMsg)
	}

	c.Set(fiber.HeaderWWWAuthenticate, value)

	return c.SendStatus(fiber.StatusUnauthorized)
}

func (s *Service) complete(c *fiber.Ctx, connID string, message []byte) error {
	identity, err := s.provider.Authenticate(connID, message)
	if err != nil {
		auth.RecordAttempt("ntlm", "failure")
		return handler.AuthError(err)
	}

	principal, err := s.auth.Reconcile(identity, s.cfg.Auth.NTLM.SelfSignup)
	if err != nil {
		auth.RecordAttempt("ntlm", "failure")
		return handler.AuthError(err)
	}

	lifetime := s.cfg.Auth.SessionTimeout(s.cfg.Auth.NTLM.SessionTimeoutMinutes)

	token, err := s.sessions.Issue(principal, lifetime)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	handler.SetSessionCookie(c, s.cfg, token, lifetime)
	auth.RecordAttempt("ntlm", "success")

	log.Info().Str("username", principal.Username).Msg("user logged in via NTLM")

	return c.JSON(fiber.Map{
		"token": token,
		"user":  handler.PrincipalJSON(principal),
	})
}
