package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Environment variables (optionally from a .env file next to
// the config) override the listen address and data directory.

const (
	EnvListen  = "FAMCAL_LISTEN"
	EnvDataDir = "FAMCAL_DATA_DIR"
)

// BackupConfig controls the scheduled JSON export.
type BackupConfig struct {
	// Cron is a 5-field cron spec. Empty disables scheduled backups.
	Cron string `yaml:"cron" json:"cron"`
	// Dir receives the backup files. Relative paths are under DataDir.
	Dir string `yaml:"dir" json:"dir"`
	// Keep is how many backup files survive pruning.
	Keep int `yaml:"keep" json:"keep"`
}

// SnapshotConfig sizes the headless-browser capture of the month page.
type SnapshotConfig struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for date keys and "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds the event store file.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StartYear/StartMonth is the month shown when no month is requested.
	// Zero means the current month.
	StartYear  int `yaml:"start_year" json:"start_year"`
	StartMonth int `yaml:"start_month" json:"start_month"`

	// BaseURL prefixes share links. Empty means the request's host.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// ICSYears is how many years of occurrences the ICS feed covers.
	ICSYears int `yaml:"ics_years" json:"ics_years"`

	// ImportMaxBytes caps uploaded backup and ICS bodies.
	ImportMaxBytes int64 `yaml:"import_max_bytes" json:"import_max_bytes"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Backup   BackupConfig   `yaml:"backup" json:"backup"`
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "Asia/Seoul",
		DataDir:        "./data",
		StartYear:      2025,
		StartMonth:     11,
		ICSYears:       2,
		ImportMaxBytes: 32 << 20,
		LogLevel:       "info",
		Backup: BackupConfig{
			Cron: "0 3 * * *",
			Dir:  "backups",
			Keep: 14,
		},
		Snapshot: SnapshotConfig{Width: 1280, Height: 960},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	// A half-set start month is ignored.
	if c.StartMonth < 1 || c.StartMonth > 12 || c.StartYear <= 0 {
		c.StartYear, c.StartMonth = 0, 0
	}
	if c.ICSYears <= 0 {
		c.ICSYears = def.ICSYears
	}
	if c.ImportMaxBytes <= 0 {
		c.ImportMaxBytes = def.ImportMaxBytes
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = def.Backup.Dir
	}
	if c.Backup.Keep <= 0 {
		c.Backup.Keep = def.Backup.Keep
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = def.Snapshot.Width
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = def.Snapshot.Height
	}
}

// Location resolves Timezone, falling back to time.Local when the zone
// database does not know it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// BackupDir is Backup.Dir resolved against DataDir.
func (c *Config) BackupDir() string {
	if filepath.IsAbs(c.Backup.Dir) {
		return c.Backup.Dir
	}
	return filepath.Join(c.DataDir, c.Backup.Dir)
}

// StartMonthOr returns the configured start month, or now's month when
// none is set.
func (c *Config) StartMonthOr(now time.Time) (int, time.Month) {
	if c.StartYear > 0 && c.StartMonth > 0 {
		return c.StartYear, time.Month(c.StartMonth)
	}
	return now.Year(), now.Month()
}

// ApplyEnv overrides fields from the process environment. A .env file in
// the config's directory is read first; existing variables win over it.
func (c *Config) ApplyEnv(path string) error {
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
//
// Environment overrides are applied after either branch and never written
// back to disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Normalize()
	}

	if err := cfg.ApplyEnv(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".famcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
