// Package group provides the admin endpoints for inspecting and
// reloading the group catalog.
package group

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

// Path is the base path for group administration.
const Path = handler.APIPath + "/admin/groups"

// Service provides admin operations on the group catalog.
type Service struct {
	handler.Service
	cfg    *config.Config
	groups *groups.Store
}

// Handler is the exported instance.
var Handler = Service{}

// Init registers routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, db *gorm.DB, groupStore *groups.Store) {
	if app == nil || cfg == nil || db == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	s.cfg = cfg
	s.groups = groupStore

	app.Get(Path, authmw.RequireAdmin(), s.List)
	app.Post(Path+"/reload", authmw.RequireAdmin(), s.Reload)
}

// List returns every group with its flattened permissions.
func (s *Service) List(c *fiber.Ctx) error {
	resolved := s.groups.Current()

	items := make([]fiber.Map, 0)

	for _, id := range resolved.GroupIDs() {
		perms, _ := resolved.Permissions(id)
		items = append(items, fiber.Map{
			"id": id,
			"permissions": fiber.Map{
				"apps":        perms.Apps,
				"prompts":     perms.Prompts,
				"models":      perms.Models,
				"adminAccess": perms.AdminAccess,
			},
		})
	}

	return c.JSON(fiber.Map{"groups": items})
}

// Reload re-reads the catalog file and swaps it in. A catalog that fails
// to parse or resolve leaves the running one untouched.
func (s *Service) Reload(c *fiber.Ctx) error {
	catalog, err := groups.LoadCatalog(s.cfg.Auth.CatalogPath)
	if err != nil {
		log.Error().Err(err).Msg("group catalog reload failed to parse")
		return fiber.NewError(fiber.StatusUnprocessableEntity, "catalog rejected: "+err.Error())
	}

	if err := s.groups.Reload(catalog); err != nil {
		log.Error().Err(err).Msg("group catalog reload failed to resolve")
		return fiber.NewError(fiber.StatusUnprocessableEntity, "catalog rejected: "+err.Error())
	}

	log.Info().Msg("group catalog reloaded")

	return c.JSON(fiber.Map{"status": "ok"})
}
