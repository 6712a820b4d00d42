// Package client provides the admin endpoints for the OAuth2 client
// registry: registration, secret rotation and suspension.
package client

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/oauthclient"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

// Path is the base path for client administration.
const Path = handler.APIPath + "/admin/clients"

// Service provides admin operations for OAuth clients.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	validate *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type registerRequest struct {
	ClientID      string   `json:"clientId" validate:"required,min=3,max=64"`
	AllowedApps   []string `json:"allowedApps"`
	AllowedModels []string `json:"allowedModels"`
	Scopes        []string `json:"scopes"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.validate = validator.New()

	app.Get(Path, authmw.RequireAdmin(), s.List)
	app.Post(Path, authmw.RequireAdmin(), s.Register)
	app.Post(Path+"/:id/rotate", authmw.RequireAdmin(), s.Rotate)
	app.Put(Path+"/:id/active", authmw.RequireAdmin(), s.SetActive)
}

// List returns all registered clients. Secret hashes never leave the
// store.
func (s *Service) List(c *fiber.Ctx) error {
	var clients []models.OAuthClient
	if err := s.db.Order("client_id").Find(&clients).Error; err != nil {
		log.Error().Err(err).Msg("failed to list oauth clients")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	items := make([]fiber.Map, 0, len(clients))
	for i := range clients {
		items = append(items, clientJSON(&clients[i]))
	}

	return c.JSON(fiber.Map{"clients": items})
}

// Register creates a client and returns the generated secret. This is
// the only time the secret is visible.
func (s *Service) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid client data")
	}

	secret, err := oauthclient.Register(s.db, req.ClientID, req.AllowedApps, req.AllowedModels, req.Scopes)
	if errors.Is(err, oauthclient.ErrClientAlreadyExists) {
		return fiber.NewError(fiber.StatusConflict, "client id already taken")
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to register oauth client")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("client_id", req.ClientID).Msg("oauth client registered")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"clientId":     req.ClientID,
		"clientSecret": secret,
	})
}

// Rotate replaces the client secret. Tokens issued before the rotation
// are rejected from here on.
func (s *Service) Rotate(c *fiber.Ctx) error {
	clientID := c.Params("id")

	secret, err := oauthclient.RotateSecret(s.db, clientID)
	if errors.Is(err, oauthclient.ErrClientNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "client not found")
	}

	if err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to rotate client secret")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("client_id", clientID).Msg("oauth client secret rotated")

	return c.JSON(fiber.Map{
		"clientId":     clientID,
		"clientSecret": secret,
	})
}

// SetActive suspends or reactivates a client. Suspension revokes every
// outstanding token immediately.
func (s *Service) SetActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "active flag is required")
	}

	clientID := c.Params("id")

	if _, err := oauthclient.Find(s.db, clientID); errors.Is(err, oauthclient.ErrClientNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "client not found")
	}

	if err := oauthclient.SetActive(s.db, clientID, *req.Active); err != nil {
		log.Error().Err(err).Str("client_id", clientID).Msg("failed to set client active flag")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("client_id", clientID).Bool("active", *req.Active).Msg("oauth client active flag changed")

	return c.JSON(fiber.Map{"status": "ok"})
}

func clientJSON(client *models.OAuthClient) fiber.Map {
	return fiber.Map{
		"clientId":      client.ClientID,
		"active":        client.Active,
		"allowedApps":   client.AllowedApps,
		"allowedModels": client.AllowedModels,
		"scopes":        client.Scopes,
		"lastRotated":   client.LastRotated,
		"createdAt":     client.CreatedAt,
	}
}
