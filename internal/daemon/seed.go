package daemon

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

func seed(_ *config.Config, db *gorm.DB) {
	// Seed an admin account if the user table is empty

	var count int64

	db.Model(&models.UserAccount{}).Count(&count)
	if count == 0 {
		acc := &models.UserAccount{
			ID:             uuid.NewString(),
			Active:         true,
			Username:       "admin",
			Name:           "Administrator",
			PasswordHash:   models.HashPassword("changeme"),
			InternalGroups: []string{"admin"},
			AuthMethods:    []string{string(models.AuthMethodLocal)},
		}

		if err := db.Create(acc).Error; err != nil {
			log.Error().Err(err).Msg("failed to seed admin account")
			return
		}

		log.Warn().Msg("seeded default admin account, change the password immediately")
	}
}
