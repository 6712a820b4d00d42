// Package account provides persistence operations for user account records.
package account

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
)

const (
	usernameQueryPattern = "username = ?"
	idQueryPattern       = "id = ?"
)

var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountAlreadyExists is returned when creating a duplicate username.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// subjectColumn maps an auth method to the column linking its external
// subject id. Local accounts are addressed by username instead.
func subjectColumn(method models.AuthMethod) string {
	switch method {
	case models.AuthMethodOIDC:
		return "oidc_subject"
	case models.AuthMethodLDAP:
		return "ldap_dn"
	case models.AuthMethodNTLM:
		return "ntlm_account"
	case models.AuthMethodTeams:
		return "teams_object_id"
	default:
		return ""
	}
}

// FindBySubject looks up an account by the external subject id of the
// given auth method.
func FindBySubject(db *gorm.DB, method models.AuthMethod, subject string) (*models.UserAccount, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	column := subjectColumn(method)
	if column == "" {
		return FindByUsername(db, subject)
	}

	var acc models.UserAccount

	result := db.Where(column+" = ?", subject).First(&acc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}

		return nil, result.Error
	}

	return &acc, nil
}

// FindByEmail looks up an account by email, restricted to records whose
// AuthMethods include the given method. This is the fallback for
// providers that change subject ids between logins.
func FindByEmail(db *gorm.DB, email string, method models.AuthMethod) (*models.UserAccount, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	if email == "" {
		return nil, ErrAccountNotFound
	}

	var candidates []models.UserAccount

	result := db.Where("email = ?", email).Find(&candidates)
	if result.Error != nil {
		return nil, result.Error
	}

	for i := range candidates {
		if candidates[i].HasAuthMethod(method) {
			return &candidates[i], nil
		}
	}

	return nil, ErrAccountNotFound
}

// FindByUsername looks up an account by username.
func FindByUsername(db *gorm.DB, username string) (*models.UserAccount, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var acc models.UserAccount

	result := db.Where(usernameQueryPattern, username).First(&acc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}

		return nil, result.Error
	}

	return &acc, nil
}

// FindByID looks up an account by its UUID.
func FindByID(db *gorm.DB, id string) (*models.UserAccount, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var acc models.UserAccount

	result := db.Where(idQueryPattern, id).First(&acc)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}

		return nil, result.Error
	}

	return &acc, nil
}

// Create persists a new account record.
func Create(db *gorm.DB, acc *models.UserAccount) error {
	if db == nil {
		return ErrDBNil
	}

	var existing models.UserAccount
	if err := db.Where(usernameQueryPattern, acc.Username).First(&existing).Error; err == nil {
		return ErrAccountAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	acc.CreatedAt = time.Now()
	acc.UpdatedAt = time.Now()

	return db.Create(acc).Error
}

// Save persists changes to an existing account record.
func Save(db *gorm.DB, acc *models.UserAccount) error {
	if db == nil {
		return ErrDBNil
	}

	acc.UpdatedAt = time.Now()

	return db.Save(acc).Error
}

// SetActive flips the active flag; a disabled account is rejected by the
// per-request liveness re-check before its tokens expire.
func SetActive(db *gorm.DB, id string, active bool) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Model(&models.UserAccount{}).
		Where(idQueryPattern, id).
		Update("active", active).Error
}

// SetInternalGroups replaces the admin-assigned group list.
func SetInternalGroups(db *gorm.DB, id string, groups []string) error {
	if db == nil {
		return ErrDBNil
	}

	return db.Model(&models.UserAccount{}).
		Where(idQueryPattern, id).
		Update("internal_groups", groups).Error
}
