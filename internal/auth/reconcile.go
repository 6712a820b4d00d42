package auth

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
)

// Reconciler merges transient external identities with persisted account
// records and derives the effective principal.
type Reconciler struct {
	db     *gorm.DB
	groups *groups.Store
}

// NewReconciler creates a reconciler over the account store and the
// resolved group catalog.
func NewReconciler(db *gorm.DB, groupStore *groups.Store) *Reconciler {
	return &Reconciler{db: db, groups: groupStore}
}

// DisplayGroups is the ordered union of raw external labels and internal
// group ids, external-first, deduplicated. This is the audit/display
// list; it preserves provider-supplied labels regardless of whether they
// map to anything.
func DisplayGroups(externalLabels, internalGroups []string) []string {
	seen := make(map[string]struct{}, len(externalLabels)+len(internalGroups))
	out := make([]string, 0, len(externalLabels)+len(internalGroups))

	for _, set := range [][]string{externalLabels, internalGroups} {
		for _, g := range set {
			if _, ok := seen[g]; ok {
				continue
			}

			seen[g] = struct{}{}
			out = append(out, g)
		}
	}

	return out
}

// AuthorizationGroups is the union of mapped internal ids and the
// admin-assigned internal groups. This set feeds permission resolution
// and must never be confused with the display list.
func AuthorizationGroups(mappedGroups, internalGroups []string) []string {
	return DisplayGroups(mappedGroups, internalGroups)
}

// Reconcile looks up or provisions the account record matching the
// identity, enforces the active flag, and derives the effective
// principal with live permissions.
//
// Lookup order: provider subject id first, then email restricted to
// records carrying this auth method. When nothing matches and selfSignup
// is disabled the attempt fails with ErrRegistrationNotAllowed.
func (r *Reconciler) Reconcile(identity *Identity, selfSignup bool) (*Principal, error) {
	acc, err := r.lookupAccount(identity)

	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		if !selfSignup {
			return nil, ErrRegistrationNotAllowed
		}

		acc, err = r.provisionAccount(identity)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if !acc.Active {
		return nil, ErrAccountDisabled
	}

	r.refreshAccountLink(acc, identity)

	return r.buildPrincipal(acc, identity), nil
}

// PrincipalForAccount derives a principal for an already-loaded account,
// used by the session validator after a liveness re-check.
func (r *Reconciler) PrincipalForAccount(acc *models.UserAccount, displayGroups []string, method models.AuthMethod, provider string) *Principal {
	authSet := AuthorizationGroups(r.groups.MapExternal(displayGroups), acc.InternalGroups)

	return &Principal{
		ID:          acc.ID,
		Username:    acc.Username,
		Name:        acc.Name,
		Email:       acc.Email,
		Groups:      displayGroups,
		Permissions: r.groups.ResolvePermissions(authSet),
		Method:      method,
		Provider:    provider,
	}
}

func (r *Reconciler) lookupAccount(identity *Identity) (*models.UserAccount, error) {
	acc, err := account.FindBySubject(r.db, identity.Method, identity.SubjectID)
	if err == nil {
		return acc, nil
	}

	if !errors.Is(err, account.ErrAccountNotFound) {
		return nil, err
	}

	return account.FindByEmail(r.db, identity.Email, identity.Method)
}

func (r *Reconciler) provisionAccount(identity *Identity) (*models.UserAccount, error) {
	username := identity.Username
	if username == "" {
		username = identity.SubjectID
	}

	acc := &models.UserAccount{
		ID:             uuid.NewString(),
		Active:         true,
		Username:       username,
		Email:          identity.Email,
		Name:           identity.Name,
		InternalGroups: []string{},
		AuthMethods:    []string{string(identity.Method)},
	}

	setSubjectLink(acc, identity)

	if err := account.Create(r.db, acc); err != nil {
		return nil, err
	}

	log.Info().Str("username", acc.Username).Str("method", string(identity.Method)).
		Msg("provisioned account on first external login")

	return acc, nil
}

// refreshAccountLink updates profile attributes and the provider link on
// each successful login. Failures are logged, not fatal: the principal is
// already established.
func (r *Reconciler) refreshAccountLink(acc *models.UserAccount, identity *Identity) {
	changed := false

	if identity.Email != "" && acc.Email != identity.Email {
		acc.Email = identity.Email
		changed = true
	}

	if identity.Name != "" && acc.Name != identity.Name {
		acc.Name = identity.Name
		changed = true
	}

	if setSubjectLink(acc, identity) {
		changed = true
	}

	if !acc.HasAuthMethod(identity.Method) {
		acc.AuthMethods = append(acc.AuthMethods, string(identity.Method))
		changed = true
	}

	if changed {
		if err := account.Save(r.db, acc); err != nil {
			log.Warn().Err(err).Str("username", acc.Username).Msg("failed to refresh account link data")
		}
	}
}

func setSubjectLink(acc *models.UserAccount, identity *Identity) bool {
	var field *string

	switch identity.Method {
	case models.AuthMethodOIDC:
		field = &acc.OIDCSubject
	case models.AuthMethodLDAP:
		field = &acc.LDAPDN
	case models.AuthMethodNTLM:
		field = &acc.NTLMAccount
	case models.AuthMethodTeams:
		field = &acc.TeamsObjectID
	default:
		return false
	}

	if *field == identity.SubjectID {
		return false
	}

	*field = identity.SubjectID

	return true
}

func (r *Reconciler) buildPrincipal(acc *models.UserAccount, identity *Identity) *Principal {
	display := DisplayGroups(identity.ExternalGroups, acc.InternalGroups)
	authSet := AuthorizationGroups(r.groups.MapExternal(identity.ExternalGroups), acc.InternalGroups)

	return &Principal{
		ID:          acc.ID,
		Username:    acc.Username,
		Name:        acc.Name,
		Email:       acc.Email,
		Groups:      display,
		Permissions: r.groups.ResolvePermissions(authSet),
		Method:      identity.Method,
		Provider:    identity.Provider,
	}
}
