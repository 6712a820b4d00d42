package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	coreauth "github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/oauthclient"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	sessions *session.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.UserAccount{}, &models.OAuthClient{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	catalog, err := groups.ParseCatalog([]byte(`{
		"groups": {
			"anonymous": {
				"permissions": {"apps": [], "prompts": [], "models": []}
			},
			"users": {
				"permissions": {"apps": ["assistant"], "prompts": [], "models": []}
			}
		}
	}`))
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}

	groupStore, err := groups.NewStore(catalog, []string{"anonymous"})
	if err != nil {
		t.Fatalf("failed to build group store: %v", err)
	}

	sessions := session.NewManager("test-secret", db, coreauth.NewReconciler(db, groupStore))

	app := fiber.New()
	app.Use(Middleware(sessions, groupStore))
	app.Get("/whoami", RequireAuth(), func(c *fiber.Ctx) error {
		return c.SendString(Principal(c).Username)
	})
	app.Get(handler.AuthStatusPath, func(c *fiber.Ctx) error {
		return c.SendString(string(Principal(c).Method))
	})

	return &testEnv{app: app, db: db, sessions: sessions}
}

func seedAccount(t *testing.T, db *gorm.DB) *models.UserAccount {
	t.Helper()

	acc := &models.UserAccount{
		ID:             "id-erin",
		Active:         true,
		Username:       "erin",
		Email:          "erin@example.com",
		Name:           "Erin Example",
		InternalGroups: []string{"users"},
		AuthMethods:    []string{string(models.AuthMethodLocal)},
	}
	if err := account.Create(db, acc); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	return acc
}

func issueToken(t *testing.T, env *testEnv, acc *models.UserAccount, lifetime time.Duration) string {
	t.Helper()

	token, err := env.sessions.Issue(&coreauth.Principal{
		ID:       acc.ID,
		Username: acc.Username,
		Name:     acc.Name,
		Email:    acc.Email,
		Groups:   acc.InternalGroups,
		Method:   models.AuthMethodLocal,
	}, lifetime)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	return token
}

func get(t *testing.T, env *testEnv, target, token string) (*http.Response, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	return resp, string(body)
}

func TestMiddlewareValidToken(t *testing.T) {
	env := newTestEnv(t)
	acc := seedAccount(t, env.db)
	token := issueToken(t, env, acc, time.Hour)

	resp, body := get(t, env, "/whoami", token)
	if resp.StatusCode != http.StatusOK || body != "erin" {
		t.Fatalf("expected 200 erin, got %d %q", resp.StatusCode, body)
	}
}

func TestMiddlewareDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	acc := seedAccount(t, env.db)
	token := issueToken(t, env, acc, time.Hour)

	if err := account.SetActive(env.db, acc.ID, false); err != nil {
		t.Fatalf("failed to disable account: %v", err)
	}

	resp, body := get(t, env, "/whoami", token)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled account, got %d", resp.StatusCode)
	}

	if !strings.Contains(body, "account disabled") {
		t.Fatalf("expected the disabled reason in the body, got %q", body)
	}
}

func TestMiddlewareSuspendedClient(t *testing.T) {
	env := newTestEnv(t)

	if _, err := oauthclient.Register(env.db, "reporting-service", nil, nil, nil); err != nil {
		t.Fatalf("failed to register client: %v", err)
	}

	client, err := oauthclient.Find(env.db, "reporting-service")
	if err != nil {
		t.Fatalf("failed to load client: %v", err)
	}

	token, err := env.sessions.Issue(coreauth.ClientPrincipal(client), time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := oauthclient.SetActive(env.db, "reporting-service", false); err != nil {
		t.Fatalf("failed to suspend client: %v", err)
	}

	resp, body := get(t, env, "/whoami", token)
	if resp.StatusCode != http.StatusForbidden || !strings.Contains(body, "client suspended") {
		t.Fatalf("expected 403 client suspended, got %d %q", resp.StatusCode, body)
	}
}

func TestMiddlewareRotatedClient(t *testing.T) {
	env := newTestEnv(t)

	if _, err := oauthclient.Register(env.db, "reporting-service", nil, nil, nil); err != nil {
		t.Fatalf("failed to register client: %v", err)
	}

	client, err := oauthclient.Find(env.db, "reporting-service")
	if err != nil {
		t.Fatalf("failed to load client: %v", err)
	}

	token, err := env.sessions.Issue(coreauth.ClientPrincipal(client), time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// claim timestamps carry second precision
	time.Sleep(1100 * time.Millisecond)

	if _, err := oauthclient.RotateSecret(env.db, "reporting-service"); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	resp, body := get(t, env, "/whoami", token)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "credentials rotated") {
		t.Fatalf("expected 401 credentials rotated, got %d %q", resp.StatusCode, body)
	}
}

func TestMiddlewareExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	acc := seedAccount(t, env.db)
	token := issueToken(t, env, acc, -time.Minute)

	resp, body := get(t, env, "/whoami", token)
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "token expired") {
		t.Fatalf("expected 401 token expired, got %d %q", resp.StatusCode, body)
	}
}

func TestMiddlewareTamperedTokenFallsToAnonymous(t *testing.T) {
	env := newTestEnv(t)
	acc := seedAccount(t, env.db)
	token := issueToken(t, env, acc, time.Hour)

	resp, body := get(t, env, "/whoami", token+"x")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered token, got %d", resp.StatusCode)
	}

	if !strings.Contains(body, "authentication required") {
		t.Fatalf("expected the anonymous rejection, got %q", body)
	}
}

func TestMiddlewareStatusEndpointSeesExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	acc := seedAccount(t, env.db)
	token := issueToken(t, env, acc, -time.Minute)

	resp, body := get(t, env, handler.AuthStatusPath, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected the status endpoint to answer, got %d", resp.StatusCode)
	}

	if body != string(models.AuthMethodAnonymous) {
		t.Fatalf("expected anonymous principal on the status route, got %q", body)
	}
}
