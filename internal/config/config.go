package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Admin       AdminConfig               `json:"admin"`
	Auth        AuthConfig                `json:"auth"`
	FAQ         FAQConfig                 `json:"faq"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	LogLevel      string `json:"log_level"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AdminConfig describes the single administrator identity. The id is the
// authoritative value injected into every component that branches on
// admin-ness; the profile fields only seed the admin's account row so the
// administrator can sign in.
type AdminConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthConfig struct {
	TokenTTLMinutes      int `json:"token_ttl_minutes"`
	CleanIntervalMinutes int `json:"clean_interval_minutes"`
}

type FAQConfig struct {
	CorpusPath string  `json:"corpus_path"`
	Threshold  float64 `json:"threshold"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Admin.ID == "" {
		return nil, fmt.Errorf("admin.id must be configured")
	}

	if cfg.FAQ.CorpusPath != "" && !filepath.IsAbs(cfg.FAQ.CorpusPath) {
		cfg.FAQ.CorpusPath = filepath.Join(filepath.Dir(absPath), cfg.FAQ.CorpusPath)
	}

	return &cfg, nil
}
