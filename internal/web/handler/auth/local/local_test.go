package local

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/controller/account"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	statushandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/status"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

const catalogDoc = `{
	"groups": {
		"anonymous": {
			"permissions": {"apps": ["public-chat"], "prompts": [], "models": []}
		},
		"users": {
			"inherits": ["anonymous"],
			"permissions": {"apps": ["assistant"], "prompts": [], "models": []}
		},
		"finance": {
			"inherits": ["users"],
			"permissions": {"apps": ["finance-reports"], "prompts": [], "models": []}
		}
	}
}`

type testEnv struct {
	app *fiber.App
	db  *gorm.DB
	cfg *config.Config
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

	catalog, err := groups.ParseCatalog([]byte(catalogDoc))
	if err != nil {
		t.Fatalf("failed to parse catalog: %v", err)
	}

	groupStore, err := groups.NewStore(catalog, []string{"anonymous"})
	if err != nil {
		t.Fatalf("failed to build group store: %v", err)
	}

	cfg := &config.Config{
		DevMode:   true,
		Webserver: config.Webserver{URL: "http://localhost", Port: 3000},
		Auth: config.Auth{
			Secret:                "test-secret",
			SessionTimeoutMinutes: 480,
			AnonymousGroups:       []string{"anonymous"},
			Local:                 config.Local{Enabled: true},
		},
	}

	reconciler := auth.NewReconciler(db, groupStore)
	sessions := session.NewManager(cfg.Auth.Secret, db, reconciler)

	app := fiber.New()
	app.Use(authmw.Middleware(sessions, groupStore))

	var s Service
	s.Init(app, cfg, db, reconciler, sessions)

	var status statushandler.Service
	status.Init(app, cfg, db, sessions, groupStore)

	return &testEnv{app: app, db: db, cfg: cfg}
}

func createUser(t *testing.T, db *gorm.DB, username, password string, internalGroups []string) *models.UserAccount {
	t.Helper()

	acc, err := auth.NewLocalProvider(db).CreateUser(username, username+"@example.com", password, username, internalGroups)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return acc
}

func postJSON(t *testing.T, app *fiber.App, target, body string, header map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to decode body %q: %v", raw, err)
	}

	return out
}

func TestLoginSuccessIssuesTokenAndCookie(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.db, "alice", "s3cr3t-pass", []string{"finance"})

	resp := postJSON(t, env.app, Path+"/login", `{"username":"alice","password":"s3cr3t-pass"}`, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	setCookie := resp.Header.Get("Set-Cookie")
	if !strings.Contains(setCookie, session.CookieName+"=") {
		t.Fatalf("expected %s cookie, got %q", session.CookieName, setCookie)
	}

	if !strings.Contains(strings.ToLower(setCookie), "httponly") {
		t.Fatalf("expected HttpOnly cookie, got %q", setCookie)
	}

	body := decodeBody(t, resp)
	if body["token"] == "" || body["token"] == nil {
		t.Fatalf("expected token in response, got %v", body)
	}

	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected user object, got %v", body)
	}

	if user["username"] != "alice" {
		t.Fatalf("expected username alice, got %v", user["username"])
	}

	perms := user["permissions"].(map[string]interface{})
	apps := perms["apps"].([]interface{})

	found := false
	for _, a := range apps {
		if a == "finance-reports" {
			found = true
		}
	}

	if !found {
		t.Fatalf("expected finance-reports in app grants, got %v", apps)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	createUser(t, env.db, "bob", "right-password", nil)

	resp := postJSON(t, env.app, Path+"/login", `{"username":"bob","password":"wrong"}`, nil)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	acc := createUser(t, env.db, "carol", "pass-word-1", nil)

	if err := account.SetActive(env.db, acc.ID, false); err != nil {
		t.Fatalf("failed to disable account: %v", err)
	}

	resp := postJSON(t, env.app, Path+"/login", `{"username":"carol","password":"pass-word-1"}`, nil)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestLoginMissingFields(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.app, Path+"/login", `{"username":"alice"}`, nil)

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDisablingAccountRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	acc := createUser(t, env.db, "dave", "pass-word-1", nil)

	resp := postJSON(t, env.app, Path+"/login", `{"username":"dave","password":"pass-word-1"}`, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with %d", resp.StatusCode)
	}

	token := decodeBody(t, resp)["token"].(string)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	// token valid: status reports authenticated
	req := httptest.NewRequest(http.MethodGet, statushandler.Path, nil)
	req.Header.Set("Authorization", "Bearer "+token)

	statusResp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	if got := decodeBody(t, statusResp); got["authenticated"] != true {
		t.Fatalf("expected authenticated=true, got %v", got)
	}

	// disable the account, the very same token must stop working
	if err := account.SetActive(env.db, acc.ID, false); err != nil {
		t.Fatalf("failed to disable account: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, statushandler.Path, nil)
	for k, v := range bearer {
		req.Header.Set(k, v)
	}

	statusResp, err = env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	if got := decodeBody(t, statusResp); got["authenticated"] != false {
		t.Fatalf("expected authenticated=false after disable, got %v", got)
	}
}

func TestAnonymousStatus(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, statushandler.Path, nil)

	resp, err := env.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	body := decodeBody(t, resp)
	if body["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", body)
	}

	user := body["user"].(map[string]interface{})
	if user["authMode"] != "anonymous" {
		t.Fatalf("expected anonymous principal, got %v", user)
	}
}
