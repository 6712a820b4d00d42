// Package user provides the admin endpoints for managing user accounts.
package user

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

const (
	// Path is the base path for user administration.
	Path = handler.APIPath + "/admin/users"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25

	// MaxPageSize caps a single page.
	MaxPageSize = 100
)

// Service provides admin operations for user accounts.
type Service struct {
	handler.Service
	cfg      *config.Config
	db       *gorm.DB
	groups   *groups.Store
	validate *validator.Validate
}

// Handler is the exported instance.
var Handler = Service{}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type groupsRequest struct {
	Groups []string `json:"groups" validate:"required"`
}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, groupStore *groups.Store) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.db = db
	s.groups = groupStore
	s.validate = validator.New()

	app.Get(Path, authmw.RequireAdmin(), s.List)
	app.Get(Path+"/:id", authmw.RequireAdmin(), s.Get)
	app.Put(Path+"/:id/active", authmw.RequireAdmin(), s.SetActive)
	app.Put(Path+"/:id/groups", authmw.RequireAdmin(), s.SetGroups)
}

// List returns users with simple pagination and search.
func (s *Service) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	pageSize := c.QueryInt("pageSize", DefaultPageSize)
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	search := c.Query("search", "")

	var (
		accounts   []models.UserAccount
		totalCount int64
		tx         = s.db.Model(&models.UserAccount{})
	)

	if search != "" {
		like := "%" + search + "%"
		tx = tx.Where("username LIKE ? OR email LIKE ? OR name LIKE ?", like, like, like)
	}

	if err := tx.Count(&totalCount).Error; err != nil {
		log.Error().Err(err).Msg("failed to count users")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	if err := tx.Order("username").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&accounts).Error; err != nil {
		log.Error().Err(err).Msg("failed to list users")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	items := make([]fiber.Map, 0, len(accounts))
	for i := range accounts {
		items = append(items, accountJSON(&accounts[i]))
	}

	return c.JSON(fiber.Map{
		"users":    items,
		"total":    totalCount,
		"page":     page,
		"pageSize": pageSize,
	})
}

// Get returns a single account.
func (s *Service) Get(c *fiber.Ctx) error {
	acc, err := account.FindByID(s.db, c.Params("id"))
	if errors.Is(err, account.ErrAccountNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	if err != nil {
		log.Error().Err(err).Msg("failed to load user")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(accountJSON(acc))
}

// SetActive enables or disables an account. Disabling revokes every
// outstanding session immediately.
func (s *Service) SetActive(c *fiber.Ctx) error {
	var req activeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "active flag is required")
	}

	id := c.Params("id")

	if _, err := account.FindByID(s.db, id); errors.Is(err, account.ErrAccountNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	if err := account.SetActive(s.db, id, *req.Active); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to set active flag")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	log.Info().Str("id", id).Bool("active", *req.Active).Msg("account active flag changed")

	return c.JSON(fiber.Map{"status": "ok"})
}

// SetGroups replaces the admin-assigned internal groups of an account.
func (s *Service) SetGroups(c *fiber.Ctx) error {
	var req groupsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "groups list is required")
	}

	for _, g := range req.Groups {
		if !s.groups.Current().Has(g) {
			return fiber.NewError(fiber.StatusBadRequest, "unknown group: "+g)
		}
	}

	id := c.Params("id")

	if _, err := account.FindByID(s.db, id); errors.Is(err, account.ErrAccountNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}

	if err := account.SetInternalGroups(s.db, id, req.Groups); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to set internal groups")
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

func accountJSON(acc *models.UserAccount) fiber.Map {
	return fiber.Map{
		"id":             acc.ID,
		"username":       acc.Username,
		"email":          acc.Email,
		"name":           acc.Name,
		"active":         acc.Active,
		"internalGroups": acc.InternalGroups,
		"authMethods":    acc.AuthMethods,
		"createdAt":      acc.CreatedAt,
		"updatedAt":      acc.UpdatedAt,
	}
}
