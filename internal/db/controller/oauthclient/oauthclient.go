// Package oauthclient provides persistence operations for the OAuth2
// client-credentials registry.
package oauthclient

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/uniuri"
)

const clientIDQueryPattern = "client_id = ?"

var (
	// ErrClientNotFound is returned when no client matches the lookup.
	ErrClientNotFound = errors.New("oauth client not found")
	// ErrClientAlreadyExists is returned when registering a duplicate client id.
	ErrClientAlreadyExists = errors.New("oauth client already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// Find looks up a client by its client id.
func Find(db *gorm.DB, clientID string) (*models.OAuthClient, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var client models.OAuthClient

	result := db.Where(clientIDQueryPattern, clientID).First(&client)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}

		return nil, result.Error
	}

	return &client, nil
}

// Register creates a new client and returns the generated plaintext
// secret. The secret is stored hashed and cannot be recovered later.
func Register(db *gorm.DB, clientID string, allowedApps, allowedModels, scopes []string) (string, error) {
	if db == nil {
		return "", ErrDBNil
	}

	var existing models.OAuthClient
	if err := db.Where(clientIDQueryPattern, clientID).First(&existing).Error; err == nil {
		return "", ErrClientAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	secret := generateSecret()

	client := models.OAuthClient{
		ClientID:      clientID,
		Active:        true,
		SecretHash:    models.HashClientSecret(secret),
		AllowedApps:   allowedApps,
		AllowedModels: allowedModels,
		Scopes:        scopes,
		LastRotated:   time.Now(),
	}

	if err := db.Create(&client).Error; err != nil {
		return "", err
	}

	return secret, nil
}

// RotateSecret replaces the client secret and stamps LastRotated.
// Tokens issued before the rotation fail the iat check at validation.
func RotateSecret(db *gorm.DB, clientID string) (string, error) {
	if db == nil {
		return "", ErrDBNil
	}

	if _, err := Find(db, clientID); err != nil {
		return "", err
	}

	secret := generateSecret()

	updates := map[string]interface{}{
		"secret_hash":  models.HashClientSecret(secret),
		"last_rotated": time.Now(),
		"updated_at":   time.Now(),
	}

	if err := db.Model(&models.OAuthClient{}).
		Where(clientIDQueryPattern, clientID).
		Updates(updates).Error; err != nil {
		return "", err
	}

	return secret, nil
}

// SetActive suspends or reactivates a client.
func SetActive(db *gorm.DB, clientID string, active bool) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Model(&models.OAuthClient{}).
		Where(clientIDQueryPattern, clientID).
		Update("active", active).Error
}

// secretLen yields ~250 bits of entropy over the standard alphabet.
const secretLen = 42

// generateSecret returns a url-safe random secret.
func generateSecret() string {
	return uniuri.NewLen(secretLen)
}
