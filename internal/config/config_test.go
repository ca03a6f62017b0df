package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(strings.TrimSpace(body)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	c, err := load(dir, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Driver != DriverSQLite {
		t.Errorf("driver = %q, want sqlite", c.Storage.Driver)
	}
	if c.Storage.Path != filepath.Join(dir, "notes.sqlite") {
		t.Errorf("path = %q", c.Storage.Path)
	}
	if c.Persist.Debounce != 500*time.Millisecond {
		t.Errorf("debounce = %s, want 500ms", c.Persist.Debounce)
	}
	if c.Daemon.Socket != filepath.Join(dir, "steno.sock") {
		t.Errorf("socket = %q", c.Daemon.Socket)
	}
	if c.Log.File != filepath.Join(dir, "logs", "steno-notes.log") {
		t.Errorf("log file = %q", c.Log.File)
	}
}

func TestLoadParsesYaml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
storage:
  driver: Badger
daemon:
  socket: /tmp/other.sock
persist:
  debounce: 2s
`)

	c, err := load(dir, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Driver != DriverBadger {
		t.Errorf("driver = %q, want badger", c.Storage.Driver)
	}
	if c.Storage.Path != filepath.Join(dir, "notes.badger") {
		t.Errorf("path = %q", c.Storage.Path)
	}
	if c.Daemon.Socket != "/tmp/other.sock" {
		t.Errorf("socket = %q", c.Daemon.Socket)
	}
	if c.Persist.Debounce != 2*time.Second {
		t.Errorf("debounce = %s, want 2s", c.Persist.Debounce)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
storage:
  driver: sqlite
persist:
  debounce: 2s
`)
	env := map[string]string{
		"STENO_NOTES_DRIVER":   "badger",
		"STENO_NOTES_DB":       "/data/notes",
		"STENO_NOTES_SOCKET":   "/run/steno.sock",
		"STENO_NOTES_DEBOUNCE": "50ms",
	}

	c, err := load(dir, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Storage.Driver != DriverBadger || c.Storage.Path != "/data/notes" {
		t.Errorf("storage = %+v", c.Storage)
	}
	if c.Daemon.Socket != "/run/steno.sock" {
		t.Errorf("socket = %q", c.Daemon.Socket)
	}
	if c.Persist.Debounce != 50*time.Millisecond {
		t.Errorf("debounce = %s", c.Persist.Debounce)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown driver", yaml: "storage:\n  driver: postgres"},
		{name: "negative debounce", yaml: "persist:\n  debounce: -1s"},
		{name: "bad env debounce", env: map[string]string{"STENO_NOTES_DEBOUNCE": "soon"}},
		{name: "malformed yaml", yaml: "storage: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.yaml != "" {
				writeConfig(t, dir, tt.yaml)
			}
			if _, err := load(dir, func(k string) string { return tt.env[k] }); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestInitWritesLoadableDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Steno")
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	c, err := load(dir, noEnv)
	if err != nil {
		t.Fatalf("load default file: %v", err)
	}
	if c.Storage.Driver != DriverSQLite || c.Persist.Debounce != 500*time.Millisecond {
		t.Errorf("config = %+v", c)
	}

	writeConfig(t, dir, "storage:\n  driver: badger")
	if err := Init(dir); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	c, _ = load(dir, noEnv)
	if c.Storage.Driver != DriverBadger {
		t.Error("Init must not overwrite an existing config")
	}
}
