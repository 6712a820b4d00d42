package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

// LocalProvider handles local database password authentication with an
// optional TOTP second factor.
type LocalProvider struct {
	db *gorm.DB
}

// NewLocalProvider creates a new local authentication provider.
func NewLocalProvider(db *gorm.DB) *LocalProvider {
	return &LocalProvider{db: db}
}

// Authenticate verifies username/password (and TOTP code when the account
// carries a secret) and returns the normalized identity. All credential
// failures collapse into ErrInvalidCredentials.
func (p *LocalProvider) Authenticate(username, password, otpCode string) (*Identity, error) {
	acc, err := account.FindByUsername(p.db, username)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}

	if err != nil {
		return nil, ErrServiceUnavailable
	}

	if acc.PasswordHash == "" || !acc.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}

	if acc.TOTPSecret != "" {
		if !totp.Validate(otpCode, acc.TOTPSecret) {
			log.Debug().Str("username", username).Msg("totp validation failed")
			return nil, ErrInvalidCredentials
		}
	}

	return &Identity{
		SubjectID: acc.Username,
		Username:  acc.Username,
		Email:     acc.Email,
		Name:      acc.Name,
		Method:    models.AuthMethodLocal,
	}, nil
}

// CreateUser creates a new local account with a hashed password.
func (p *LocalProvider) CreateUser(username, email, password, name string, internalGroups []string) (*models.UserAccount, error) {
	acc := &models.UserAccount{
		ID:             uuid.NewString(),
		Active:         true,
		Username:       username,
		Email:          email,
		Name:           name,
		PasswordHash:   models.HashPassword(password),
		InternalGroups: internalGroups,
		AuthMethods:    []string{string(models.AuthMethodLocal)},
	}

	if err := account.Create(p.db, acc); err != nil {
		return nil, err
	}

	return acc, nil
}

// ChangePassword changes a user's password after verifying the old one.
func (p *LocalProvider) ChangePassword(username, oldPassword, newPassword string) error {
	acc, err := account.FindByUsername(p.db, username)
	if err != nil {
		return err
	}

	if !acc.VerifyPassword(oldPassword) {
		return ErrInvalidCredentials
	}

	acc.PasswordHash = models.HashPassword(newPassword)
	acc.UpdatedAt = time.Now()

	return account.Save(p.db, acc)
}

// EnrollTOTP generates and stores a TOTP secret for the account and
// returns the otpauth provisioning URL.
func (p *LocalProvider) EnrollTOTP(username, issuer string) (string, error) {
	acc, err := account.FindByUsername(p.db, username)
	if err != nil {
		return "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: acc.Username,
	})
	if err != nil {
		return "", err
	}

	acc.TOTPSecret = key.Secret()
	if err := account.Save(p.db, acc); err != nil {
		return "", err
	}

	return key.URL(), nil
}
