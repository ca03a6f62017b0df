// Package config loads steno-notes settings from config.yaml in the data
// directory, with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

const (
	fileName        = "config.yaml"
	defaultDebounce = 500 * time.Millisecond
)

const defaultConfigYAML = `# steno-notes configuration

storage:
  # sqlite or badger
  driver: sqlite
  # Defaults to notes.sqlite (or notes.badger/) in this directory.
  # path: /path/to/notes.sqlite

daemon:
  # Defaults to steno.sock in this directory.
  # socket: /path/to/steno.sock

persist:
  # Quiet period before note edits are written.
  debounce: 500ms

log:
  # Defaults to logs/steno-notes.log in this directory.
  # file: /path/to/steno-notes.log
`

// StorageConfig selects the durable session store.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
}

// DaemonConfig locates the transcription daemon.
type DaemonConfig struct {
	Socket string `yaml:"socket,omitempty"`
}

// PersistConfig tunes note persistence.
type PersistConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// LogConfig locates the log file.
type LogConfig struct {
	File string `yaml:"file,omitempty"`
}

// Config models config.yaml.
type Config struct {
	// Dir is the data directory the file was loaded from.
	Dir string `yaml:"-"`

	Storage StorageConfig `yaml:"storage"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Persist PersistConfig `yaml:"persist"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultDir returns the default data directory.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "Application Support", "Steno")
}

// Init creates dir and writes a commented default config.yaml unless one
// already exists.
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, fileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Load reads dir/config.yaml (a missing file means defaults), applies
// environment overrides and validates the result.
func Load(dir string) (*Config, error) {
	return load(dir, os.Getenv)
}

func load(dir string, getenv func(string) string) (*Config, error) {
	c := &Config{Dir: dir}

	path := filepath.Join(dir, fileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := c.applyEnv(getenv); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("STENO_NOTES_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := getenv("STENO_NOTES_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := getenv("STENO_NOTES_SOCKET"); v != "" {
		c.Daemon.Socket = v
	}
	if v := getenv("STENO_NOTES_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STENO_NOTES_DEBOUNCE: %w", err)
		}
		c.Persist.Debounce = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case DriverBadger:
			c.Storage.Path = filepath.Join(c.Dir, "notes.badger")
		default:
			c.Storage.Path = filepath.Join(c.Dir, "notes.sqlite")
		}
	}
	if c.Daemon.Socket == "" {
		c.Daemon.Socket = filepath.Join(c.Dir, "steno.sock")
	}
	if c.Persist.Debounce == 0 {
		c.Persist.Debounce = defaultDebounce
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.Dir, "logs", "steno-notes.log")
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverBadger:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverBadger, c.Storage.Driver)
	}
	if c.Persist.Debounce < 0 {
		return fmt.Errorf("persist.debounce must be positive, got %s", c.Persist.Debounce)
	}
	return nil
}
