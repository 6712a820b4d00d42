package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readProjectConfig(t *testing.T) Config {
	t.Helper()

	projectRoot, err := filepath.Abs("../../")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	configPath := filepath.Join(projectRoot, "etc") + string(filepath.Separator)

	cfg, err := ReadConfig(configPath)
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	return cfg
}

func TestReadConfig(t *testing.T) {
	cfg := readProjectConfig(t)

	if cfg.Title == "" {
		t.Error("Config.Title should not be empty")
	}

	if cfg.Webserver.Port == 0 {
		t.Error("Webserver.Port should not be 0")
	}

	if cfg.Webserver.URL == "" {
		t.Error("Webserver.URL should not be empty")
	}

	if cfg.Auth.Secret == "" {
		t.Error("Auth.Secret should not be empty")
	}

	if cfg.Auth.CatalogPath == "" {
		t.Error("Auth.CatalogPath should not be empty")
	}

	if len(cfg.Auth.AnonymousGroups) == 0 {
		t.Error("Auth.AnonymousGroups should carry a default")
	}
}

func TestReadConfigEnvOverride(t *testing.T) {
	t.Setenv(EnvConfigJSON, `{"Auth": {"SessionTimeoutMinutes": 15, "Local": {"SelfSignup": true}}}`)

	cfg := readProjectConfig(t)

	if cfg.Auth.SessionTimeoutMinutes != 15 {
		t.Errorf("SessionTimeoutMinutes = %d, want 15 from env override", cfg.Auth.SessionTimeoutMinutes)
	}

	if !cfg.Auth.Local.SelfSignup {
		t.Error("Local.SelfSignup should be overridden to true")
	}

	// values not mentioned in the override stay from the file
	if cfg.Webserver.Port == 0 {
		t.Error("Webserver.Port should survive the env override")
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	if _, err := ReadConfig(os.TempDir() + string(filepath.Separator)); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateDefaults(t *testing.T) {
	c := Config{
		Webserver: Webserver{Port: 8080, URL: "http://localhost:8080"},
		Auth:      Auth{Secret: "s"},
	}

	if err := validate(&c); err != nil {
		t.Fatalf("validate() error = %v", err)
	}

	if c.Webserver.ShutDownTime != 5 {
		t.Errorf("ShutDownTime = %d, want default 5", c.Webserver.ShutDownTime)
	}

	if c.Auth.SessionTimeoutMinutes != DefaultSessionTimeoutMinutes {
		t.Errorf("SessionTimeoutMinutes = %d, want default %d", c.Auth.SessionTimeoutMinutes, DefaultSessionTimeoutMinutes)
	}

	if len(c.Auth.AnonymousGroups) != 1 || c.Auth.AnonymousGroups[0] != "anonymous" {
		t.Errorf("AnonymousGroups = %v, want [anonymous]", c.Auth.AnonymousGroups)
	}

	if c.Auth.NTLM.TimeoutSeconds != 5 {
		t.Errorf("NTLM.TimeoutSeconds = %d, want default 5", c.Auth.NTLM.TimeoutSeconds)
	}
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "missing port",
			config:  Config{Webserver: Webserver{URL: "http://x"}, Auth: Auth{Secret: "s"}},
			wantErr: ErrWebServerPortCanNotBeZero,
		},
		{
			name:    "missing url",
			config:  Config{Webserver: Webserver{Port: 1}, Auth: Auth{Secret: "s"}},
			wantErr: ErrEmptyURL,
		},
		{
			name:    "missing auth secret",
			config:  Config{Webserver: Webserver{Port: 1, URL: "http://x"}},
			wantErr: ErrEmptyAuthSecret,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validate(&tt.config); !errors.Is(err, tt.wantErr) {
				t.Fatalf("validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionTimeout(t *testing.T) {
	a := Auth{SessionTimeoutMinutes: 480}

	if got := a.SessionTimeout(0); got != 480*time.Minute {
		t.Errorf("SessionTimeout(0) = %v, want 480m", got)
	}

	if got := a.SessionTimeout(60); got != time.Hour {
		t.Errorf("SessionTimeout(60) = %v, want 1h", got)
	}

	var zero Auth
	if got := zero.SessionTimeout(0); got != DefaultSessionTimeoutMinutes*time.Minute {
		t.Errorf("SessionTimeout on zero config = %v, want default", got)
	}
}
