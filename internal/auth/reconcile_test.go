package auth

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.UserAccount{}, &models.OAuthClient{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	return db
}

func newGroupStore(t *testing.T) *groups.Store {
	t.Helper()

	catalog, err := groups.ParseCatalog([]byte(`{
		"groups": {
			"anonymous": {
				"permissions": {"apps": ["public-chat"], "prompts": [], "models": []}
			},
			"users": {
				"inherits": ["anonymous"],
				"permissions": {"apps": ["assistant"], "prompts": ["general"], "models": ["gpt-mini"]},
				"mappings": ["Domain Users", "Employees"]
			},
			"finance": {
				"inherits": ["users"],
				"permissions": {"apps": ["finance-app"], "prompts": [], "models": []},
				"mappings": ["Finance-Team"]
			},
			"admin": {
				"inherits": ["users"],
				"permissions": {"apps": "*", "prompts": "*", "models": "*", "adminAccess": true},
				"mappings": ["IT-Admins"]
			}
		}
	}`))
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}

	store, err := groups.NewStore(catalog, []string{"anonymous"})
	if err != nil {
		t.Fatalf("failed to build group store: %v", err)
	}

	return store
}

func TestReconcileProvisionsOnSelfSignup(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	identity := &Identity{
		SubjectID:      "oidc-sub-123",
		Username:       "alice",
		Email:          "alice@example.com",
		Name:           "Alice Example",
		ExternalGroups: []string{"Finance-Team"},
		Method:         models.AuthMethodOIDC,
		Provider:       "corp",
	}

	principal, err := r.Reconcile(identity, true)
	if err != nil {
		t.Fatalf("expected provisioning to succeed, got %v", err)
	}

	if principal.Username != "alice" {
		t.Fatalf("expected username alice, got %q", principal.Username)
	}

	acc, err := account.FindBySubject(db, models.AuthMethodOIDC, "oidc-sub-123")
	if err != nil {
		t.Fatalf("expected account to exist after provisioning: %v", err)
	}

	if !acc.Active {
		t.Fatalf("provisioned account must be active")
	}

	if !acc.HasAuthMethod(models.AuthMethodOIDC) {
		t.Fatalf("provisioned account must record the auth method, got %v", acc.AuthMethods)
	}
}

func TestReconcileRejectsUnknownWithoutSelfSignup(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	identity := &Identity{
		SubjectID: "oidc-sub-999",
		Username:  "mallory",
		Email:     "mallory@example.com",
		Method:    models.AuthMethodOIDC,
	}

	if _, err := r.Reconcile(identity, false); !errors.Is(err, ErrRegistrationNotAllowed) {
		t.Fatalf("expected ErrRegistrationNotAllowed, got %v", err)
	}

	if _, err := account.FindBySubject(db, models.AuthMethodOIDC, "oidc-sub-999"); !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("no account must be created on rejected signup, got %v", err)
	}
}

func TestReconcileRejectsDisabledAccount(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	acc := &models.UserAccount{
		ID:             "id-bob",
		Active:         false,
		Username:       "bob",
		Email:          "bob@example.com",
		OIDCSubject:    "oidc-sub-bob",
		InternalGroups: []string{"users"},
		AuthMethods:    []string{string(models.AuthMethodOIDC)},
	}
	if err := account.Create(db, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	identity := &Identity{
		SubjectID: "oidc-sub-bob",
		Username:  "bob",
		Method:    models.AuthMethodOIDC,
	}

	if _, err := r.Reconcile(identity, true); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestReconcileEmailFallbackLinksSubject(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	acc := &models.UserAccount{
		ID:          "id-carol",
		Active:      true,
		Username:    "carol",
		Email:       "carol@example.com",
		AuthMethods: []string{string(models.AuthMethodOIDC)},
	}
	if err := account.Create(db, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	identity := &Identity{
		SubjectID: "oidc-sub-carol",
		Username:  "carol",
		Email:     "carol@example.com",
		Method:    models.AuthMethodOIDC,
	}

	principal, err := r.Reconcile(identity, false)
	if err != nil {
		t.Fatalf("expected email fallback match, got %v", err)
	}

	if principal.ID != "id-carol" {
		t.Fatalf("expected existing account id, got %q", principal.ID)
	}

	// the subject link must be recorded for subsequent logins
	linked, err := account.FindBySubject(db, models.AuthMethodOIDC, "oidc-sub-carol")
	if err != nil {
		t.Fatalf("expected subject lookup to work after linking: %v", err)
	}

	if linked.ID != "id-carol" {
		t.Fatalf("subject linked to wrong account: %q", linked.ID)
	}
}

func TestReconcileEmailFallbackIgnoresOtherMethods(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	// local-only account with the same email must not be hijacked by an
	// external login
	acc := &models.UserAccount{
		ID:          "id-dave",
		Active:      true,
		Username:    "dave",
		Email:       "dave@example.com",
		AuthMethods: []string{string(models.AuthMethodLocal)},
	}
	if err := account.Create(db, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	identity := &Identity{
		SubjectID: "oidc-sub-dave",
		Username:  "dave",
		Email:     "dave@example.com",
		Method:    models.AuthMethodOIDC,
	}

	if _, err := r.Reconcile(identity, false); !errors.Is(err, ErrRegistrationNotAllowed) {
		t.Fatalf("expected ErrRegistrationNotAllowed, got %v", err)
	}
}

func TestReconcilePermissionsFromMappedAndInternalGroups(t *testing.T) {
	db := newTestDB(t)
	r := NewReconciler(db, newGroupStore(t))

	acc := &models.UserAccount{
		ID:             "id-erin",
		Active:         true,
		Username:       "erin",
		Email:          "erin@example.com",
		LDAPDN:         "cn=erin,ou=people,dc=example,dc=com",
		InternalGroups: []string{"finance"},
		AuthMethods:    []string{string(models.AuthMethodLDAP)},
	}
	if err := account.Create(db, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	identity := &Identity{
		SubjectID:      "cn=erin,ou=people,dc=example,dc=com",
		Username:       "erin",
		ExternalGroups: []string{"Domain Users", "Some-Unmapped-Group"},
		Method:         models.AuthMethodLDAP,
	}

	principal, err := r.Reconcile(identity, false)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	// display keeps raw labels plus internal groups, in order
	wantDisplay := []string{"Domain Users", "Some-Unmapped-Group", "finance"}
	if len(principal.Groups) != len(wantDisplay) {
		t.Fatalf("display groups mismatch: got %v want %v", principal.Groups, wantDisplay)
	}

	for i, g := range wantDisplay {
		if principal.Groups[i] != g {
			t.Fatalf("display groups mismatch at %d: got %v want %v", i, principal.Groups, wantDisplay)
		}
	}

	// authorization resolves the mapped "users" group plus internal "finance"
	if !principal.Permissions.Apps.Contains("finance-app") {
		t.Fatalf("expected finance-app grant, got %+v", principal.Permissions.Apps)
	}

	if !principal.Permissions.Apps.Contains("assistant") {
		t.Fatalf("expected assistant grant from mapped users group, got %+v", principal.Permissions.Apps)
	}

	if principal.Permissions.AdminAccess {
		t.Fatalf("erin must not have admin access")
	}
}

func TestDisplayGroupsDedupOrder(t *testing.T) {
	got := DisplayGroups([]string{"A", "B", "A"}, []string{"B", "c"})

	want := []string{"A", "B", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestAnonymousPrincipal(t *testing.T) {
	p := AnonymousPrincipal(newGroupStore(t))

	if !p.IsAnonymous() {
		t.Fatalf("anonymous principal must report IsAnonymous")
	}

	if !p.Permissions.Apps.Contains("public-chat") {
		t.Fatalf("anonymous principal must carry baseline grants, got %+v", p.Permissions.Apps)
	}

	if p.Permissions.Apps.Contains("assistant") {
		t.Fatalf("anonymous principal must not carry user grants")
	}
}
