package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const minimalConfig = `
security:
  session:
    secret: test-secret
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/mng.db" {
		t.Errorf("default database path = %q", cfg.Database.Path)
	}
	if cfg.Security.Throttle.MaxAttempts != 5 {
		t.Errorf("default throttle attempts = %d, want 5", cfg.Security.Throttle.MaxAttempts)
	}
	if cfg.Security.Session.CookieName != "nixstrav_mng_session" {
		t.Errorf("default cookie name = %q", cfg.Security.Session.CookieName)
	}
	if cfg.Readers.OfflineAfterSec != 300 {
		t.Errorf("default offline threshold = %d, want 300", cfg.Readers.OfflineAfterSec)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  path: /var/lib/nixstrav/mng.db
security:
  session:
    secret: test-secret
  throttle:
    max_attempts: 3
    window_sec: 60
    lock_minutes: 2
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/nixstrav/mng.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Security.Throttle.MaxAttempts != 3 {
		t.Errorf("throttle attempts = %d, want 3", cfg.Security.Throttle.MaxAttempts)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("NIXSTRAV_DATABASE_PATH", "/tmp/env-override.db")
	t.Setenv("NIXSTRAV_SESSION_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env-override.db" {
		t.Errorf("database path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Security.Session.Secret != "env-secret" {
		t.Errorf("session secret not overridden from env")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "empty session secret",
			mutate:  func(c *Config) { c.Security.Session.Secret = "" },
			wantMsg: "session.secret",
		},
		{
			name:    "zero throttle attempts",
			mutate:  func(c *Config) { c.Security.Throttle.MaxAttempts = 0 },
			wantMsg: "max_attempts",
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantMsg: "api.port",
		},
		{
			name:    "empty mirror path",
			mutate:  func(c *Config) { c.Registry.MirrorPath = "" },
			wantMsg: "mirror_path",
		},
		{
			name:    "offline threshold below warn",
			mutate:  func(c *Config) { c.Readers.OfflineAfterSec = 10 },
			wantMsg: "offline_after_sec",
		},
		{
			name: "influx enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
			},
			wantMsg: "influxdb.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.Session.Secret = "test-secret"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}
