// Package config loads and saves the sync settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	"github.com/rcliao/voiceink-notion/internal/state"
)

const (
	// FileName is the config file inside the app directory.
	FileName = "config.json"
	// KeyringService is the OS keyring service the API key is stored under.
	KeyringService = "voiceink-to-notion"
	// KeyringUser is the keyring account name for the API key.
	KeyringUser = "notion_api_key"
	// DefaultSyncIntervalSeconds is used when no interval is configured.
	DefaultSyncIntervalSeconds = 30
)

// Errors returned by Validate.
var (
	ErrMissingAPIKey     = errors.New("notion API key is not configured")
	ErrMissingDatabaseID = errors.New("notion database id is not configured")
	ErrInvalidDatabaseID = errors.New("invalid notion database id")
)

// Config holds the settings shared by all commands.
type Config struct {
	NotionAPIKey        string `mapstructure:"notion_api_key" json:"notion_api_key,omitempty"`
	NotionDatabaseID    string `mapstructure:"notion_database_id" json:"notion_database_id"`
	SyncIntervalSeconds int    `mapstructure:"sync_interval_seconds" json:"sync_interval_seconds"`
	VoiceInkDBPath      string `mapstructure:"voiceink_db_path" json:"voiceink_db_path,omitempty"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"notion_api_key":        "NOTION_API_KEY",
	"notion_database_id":    "NOTION_DATABASE_ID",
	"sync_interval_seconds": "SYNC_INTERVAL",
	"voiceink_db_path":      "VOICEINK_DB_PATH",
}

// DefaultPath returns ~/.config/voiceink-to-notion/config.json.
func DefaultPath() (string, error) {
	dir, err := state.DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config file at path, if present, and applies environment
// overrides. A missing API key is looked up in the OS keyring.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetDefault("sync_interval_seconds", DefaultSyncIntervalSeconds)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.NotionAPIKey == "" {
		key, err := keyring.Get(KeyringService, KeyringUser)
		switch {
		case err == nil:
			cfg.NotionAPIKey = key
		case !errors.Is(err, keyring.ErrNotFound):
			slog.Debug("Keyring lookup failed", "error", err)
		}
	}
	return &cfg, nil
}

// Validate checks the required settings and normalizes the database id.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.NotionAPIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.NotionDatabaseID) == "" {
		return ErrMissingDatabaseID
	}
	id, err := NormalizeDatabaseID(c.NotionDatabaseID)
	if err != nil {
		return err
	}
	c.NotionDatabaseID = id
	return nil
}

// SyncInterval returns the configured interval, falling back to the default
// for non-positive values.
func (c *Config) SyncInterval() time.Duration {
	if c.SyncIntervalSeconds <= 0 {
		return DefaultSyncIntervalSeconds * time.Second
	}
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

var trailingHexID = regexp.MustCompile(`[0-9a-fA-F]{32}$`)

// NormalizeDatabaseID accepts a bare id, a dashed UUID or a notion.so URL and
// returns the dashed UUID form.
func NormalizeDatabaseID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, "-", "")

	// Page URLs carry a slug before the id.
	if len(s) > 32 {
		if m := trailingHexID.FindString(s); m != "" {
			s = m
		}
	}

	id, err := uuid.Parse(s)
	if err != nil || len(s) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDatabaseID, raw)
	}
	return id.String(), nil
}

// Save writes cfg to path. When storeKeyInKeyring is set, the API key is
// written to the OS keyring and left out of the file.
func Save(path string, cfg *Config, storeKeyInKeyring bool) error {
	out := *cfg
	if storeKeyInKeyring && out.NotionAPIKey != "" {
		if err := keyring.Set(KeyringService, KeyringUser, out.NotionAPIKey); err != nil {
			return fmt.Errorf("store API key in keyring: %w", err)
		}
		out.NotionAPIKey = ""
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
