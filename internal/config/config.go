// Package config loads CLI configuration.
//
// Sources, in order of precedence:
//  1. explicit --config path;
//  2. CONFIG_PATH;
//  3. ./vault-cli.yaml;
//  4. environment only.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env   string      `yaml:"env" env:"ENV" env-default:"local"`
	API   APIConfig   `yaml:"api"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
}

// APIConfig locates the backend /auth API.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" env:"VAULT_API_URL" env-default:"http://localhost:8080/api"`
	Timeout time.Duration `yaml:"timeout" env:"VAULT_API_TIMEOUT" env-default:"30s"`
}

// StoreConfig selects and configures the credential store. With RedisAddr
// set, the redis store wins; otherwise credentials live in Path.
type StoreConfig struct {
	Path       string `yaml:"path" env:"VAULT_STORE_PATH"`
	Passphrase string `yaml:"-" env:"VAULT_STORE_PASSPHRASE"` // env-only, never from file
	RedisAddr  string `yaml:"redis_addr" env:"VAULT_STORE_REDIS_ADDR"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// CredentialPath resolves the credential file location, defaulting to
// ~/.vault/credentials.json.
func (s StoreConfig) CredentialPath() string {
	if s.Path != "" {
		return s.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".vault", "credentials.json")
}

// MustLoad panics on load failure.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}
	if _, err := os.Stat("vault-cli.yaml"); err == nil {
		return tryRead("vault-cli.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, vault-cli.yaml or env vars: %w", err)
	}
	return &cfg, nil
}
