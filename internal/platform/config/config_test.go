package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickInterval != 30*time.Second || cfg.Position.Provider != ProviderStatic || cfg.Store.Driver != DriverSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Store.DSN != filepath.Join(dir, ".geoattend", "geoattend.db") {
		t.Fatalf("unexpected sqlite path %s", cfg.Store.DSN)
	}
	if cfg.OfficesFile != filepath.Join(dir, "offices.yaml") || cfg.NotesDir != filepath.Join(dir, "notes") {
		t.Fatalf("unexpected derived paths %+v", cfg)
	}
	if err := cfg.RequireUser(); err == nil {
		t.Fatalf("missing user must be reported")
	}
}

func TestLoadReadsFileFromDataDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	content := `user_id: u1
timezone: Asia/Kolkata
tick_interval: 15s
position:
  latitude: 23.0225
  longitude: 72.5714
store:
  driver: postgres
  dsn: postgres://localhost/geoattend
`
	if err := os.WriteFile(filepath.Join(dir, "geoattend.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "u1" || cfg.TickInterval != 15*time.Second || cfg.Position.Latitude != 23.0225 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Store.DSN != "postgres://localhost/geoattend" {
		t.Fatalf("postgres dsn overwritten: %s", cfg.Store.DSN)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Kolkata" {
		t.Fatalf("location: %v %v", loc, err)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEOATTEND_USER_ID", "env-user")
	t.Setenv("GEOATTEND_POSITION_PROVIDER", "plugin")
	t.Setenv("GEOATTEND_POSITION_PLUGIN_BINARY", "/usr/local/bin/fixedposition")
	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UserID != "env-user" || cfg.Position.Provider != ProviderPlugin || cfg.Position.PluginBinary != "/usr/local/bin/fixedposition" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"provider":      "position:\n  provider: gps\n",
		"plugin binary": "position:\n  provider: plugin\n",
		"driver":        "store:\n  driver: mysql\n",
		"postgres dsn":  "store:\n  driver: postgres\n",
		"timezone":      "timezone: Mars/Olympus\n",
		"tick":          "tick_interval: 0s\n",
		"latitude":      "position:\n  latitude: 120\n",
	}
	for name, content := range cases {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(dir, path); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
	if _, err := Load(" ", ""); err == nil || !strings.Contains(err.Error(), "data dir") {
		t.Fatalf("blank data dir must fail, got %v", err)
	}
	if _, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("explicit missing config must fail")
	}
}
