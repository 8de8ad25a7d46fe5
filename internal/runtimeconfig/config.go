package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Listen   string         `yaml:"listen"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Notifier NotifierConfig `yaml:"notifier"`
	Registry RegistryConfig `yaml:"registry"`
}

type AuthConfig struct {
	Secret        string `yaml:"secret"`
	TokenTTLHours int64  `yaml:"token_ttl_hours"`
}

type ProviderConfig struct {
	Endpoint                  string `yaml:"endpoint"`
	APIKey                    string `yaml:"api_key"`
	Template                  string `yaml:"template"`
	Visibility                string `yaml:"visibility"`
	HibernationTimeoutSeconds int64  `yaml:"hibernation_timeout_seconds"`
	CreateTimeoutSeconds      int64  `yaml:"create_timeout_seconds"`
	ConnectTimeoutSeconds     int64  `yaml:"connect_timeout_seconds"`
}

type NotifierConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int64  `yaml:"timeout_seconds"`
}

type RegistryConfig struct {
	DBPath string `yaml:"db_path"`
}

const (
	DefaultTemplate                  = "component-workbench"
	DefaultVisibility                = "private"
	DefaultHibernationTimeoutSeconds = int64(300)
	DefaultCreateTimeoutSeconds      = int64(60)
	DefaultConnectTimeoutSeconds     = int64(60)
	DefaultNotifierTimeoutSeconds    = int64(10)
	DefaultTokenTTLHours             = int64(24)
)

func Path() (string, error) {
	configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if configHome != "" {
		return filepath.Join(configHome, "studio", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "studio", "config.yaml"), nil
}

func Load() (Config, string, error) {
	path, err := Path()
	if err != nil {
		return Config{}, "", err
	}

	cfg := Config{}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return withDefaults(cfg), path, nil
		}
		return Config{}, path, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, path, fmt.Errorf("parse %s: %w", path, err)
	}

	return withDefaults(cfg), path, nil
}

// withDefaults fills unset fields from environment fallbacks and built-in
// defaults. STUDIO_AUTH_SECRET and STUDIO_PROVIDER_API_KEY override the
// file so deployments can keep secrets out of it.
func withDefaults(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("STUDIO_AUTH_SECRET")); env != "" {
		cfg.Auth.Secret = env
	}
	if env := strings.TrimSpace(os.Getenv("STUDIO_PROVIDER_API_KEY")); env != "" {
		cfg.Provider.APIKey = env
	}

	cfg.Listen = strings.TrimSpace(cfg.Listen)
	cfg.Auth.Secret = strings.TrimSpace(cfg.Auth.Secret)
	cfg.Provider.Endpoint = strings.TrimSpace(cfg.Provider.Endpoint)
	cfg.Provider.Template = strings.TrimSpace(cfg.Provider.Template)
	cfg.Provider.Visibility = strings.TrimSpace(cfg.Provider.Visibility)
	cfg.Notifier.URL = strings.TrimSpace(cfg.Notifier.URL)
	cfg.Registry.DBPath = strings.TrimSpace(cfg.Registry.DBPath)

	if cfg.Auth.TokenTTLHours <= 0 {
		cfg.Auth.TokenTTLHours = DefaultTokenTTLHours
	}
	if cfg.Provider.Template == "" {
		cfg.Provider.Template = DefaultTemplate
	}
	if cfg.Provider.Visibility == "" {
		cfg.Provider.Visibility = DefaultVisibility
	}
	if cfg.Provider.HibernationTimeoutSeconds <= 0 {
		cfg.Provider.HibernationTimeoutSeconds = DefaultHibernationTimeoutSeconds
	}
	if cfg.Provider.CreateTimeoutSeconds <= 0 {
		cfg.Provider.CreateTimeoutSeconds = DefaultCreateTimeoutSeconds
	}
	if cfg.Provider.ConnectTimeoutSeconds <= 0 {
		cfg.Provider.ConnectTimeoutSeconds = DefaultConnectTimeoutSeconds
	}
	if cfg.Notifier.TimeoutSeconds <= 0 {
		cfg.Notifier.TimeoutSeconds = DefaultNotifierTimeoutSeconds
	}
	return cfg
}
