package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// DirName is the per-project directory holding the history database and
// the repository config.
const DirName = ".hvcs"

// Config represents hvcs configuration
type Config struct {
	User   UserConfig
	Remote RemoteConfig
	Sync   SyncConfig
	Log    LogConfig
	Color  ColorConfig
}

// UserConfig holds user identity information
type UserConfig struct {
	Name  string `ini:"name"`
	Email string `ini:"email"`
}

type RemoteConfig struct {
	URL string `ini:"url"`
}

type SyncConfig struct {
	Interval time.Duration `ini:"interval"`
}

type LogConfig struct {
	Level string `ini:"level"`
}

// ColorConfig holds color settings
type ColorConfig struct {
	UI bool `ini:"ui"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sync:  SyncConfig{Interval: 10 * time.Minute},
		Log:   LogConfig{Level: "info"},
		Color: ColorConfig{UI: true},
	}
}

// Keys lists every settable key with a short description.
var Keys = map[string]string{
	"user.name":     "author name recorded on commits",
	"user.email":    "author email recorded on commits",
	"remote.url":    "base URL of the HTTP remote",
	"sync.interval": "background sync interval, e.g. 10m",
	"log.level":     "debug, info, warn or error",
	"color.ui":      "colored output (true/false)",
}

// globalConfigPath returns the path to the global config file
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".hvcsconfig"), nil
}

// repoConfigPath returns the path to the repository config file
func repoConfigPath(repoDir string) string {
	return filepath.Join(repoDir, DirName, "config")
}

// sources returns the config files in precedence order, lowest first.
func sources(repoDir string) []interface{} {
	var out []interface{}
	if p, err := globalConfigPath(); err == nil {
		out = append(out, p)
	}
	if repoDir != "" {
		out = append(out, repoConfigPath(repoDir))
	}
	return out
}

// Load loads configuration from both global and repository config files.
// Repository config takes precedence over global config. Missing files are
// ignored.
func Load(repoDir string) (*Config, error) {
	cfg := DefaultConfig()
	src := sources(repoDir)
	if len(src) == 0 {
		return cfg, nil
	}
	f, err := ini.LooseLoad(src[0], src[1:]...)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	for name, dst := range map[string]interface{}{
		"user":   &cfg.User,
		"remote": &cfg.Remote,
		"sync":   &cfg.Sync,
		"log":    &cfg.Log,
		"color":  &cfg.Color,
	} {
		if !f.HasSection(name) {
			continue
		}
		if err := f.Section(name).MapTo(dst); err != nil {
			return nil, fmt.Errorf("invalid [%s] config: %w", name, err)
		}
	}
	return cfg, nil
}

func splitKey(key string) (section, field string, err error) {
	if _, ok := Keys[key]; !ok {
		return "", "", fmt.Errorf("unknown config key: %s", key)
	}
	section, field, _ = strings.Cut(key, ".")
	return section, field, nil
}

// GetValue retrieves a configuration value by key (e.g., "user.name").
// Unset keys return their default.
func GetValue(repoDir, key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}
	cfg, err := Load(repoDir)
	if err != nil {
		return "", err
	}
	switch section + "." + field {
	case "user.name":
		return cfg.User.Name, nil
	case "user.email":
		return cfg.User.Email, nil
	case "remote.url":
		return cfg.Remote.URL, nil
	case "sync.interval":
		return cfg.Sync.Interval.String(), nil
	case "log.level":
		return cfg.Log.Level, nil
	default:
		return fmt.Sprintf("%t", cfg.Color.UI), nil
	}
}

// validate rejects values the typed config could not load back.
func validate(key, value string) error {
	switch key {
	case "sync.interval":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration for %s: %q", key, value)
		}
	case "color.ui":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid boolean for %s: %q", key, value)
		}
	case "log.level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid level for %s: %q", key, value)
		}
	}
	return nil
}

// SetValue sets a configuration value by key (e.g., "user.name", "Your Name")
// in the global file or the repository file under repoDir.
func SetValue(repoDir, key, value string, global bool) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}
	if err := validate(key, value); err != nil {
		return err
	}

	path := repoConfigPath(repoDir)
	if global {
		if path, err = globalConfigPath(); err != nil {
			return err
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", DirName, err)
	}

	f, err := ini.LooseLoad(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	f.Section(section).Key(field).SetValue(value)
	return f.SaveTo(path)
}

// Author returns the formatted author string "Name <email>"
func (c *Config) Author() (string, error) {
	if c.User.Name == "" {
		return "", fmt.Errorf("user.name not configured. Run: hvcs config user.name \"Your Name\"")
	}
	if c.User.Email == "" {
		return c.User.Name, nil
	}
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email), nil
}
