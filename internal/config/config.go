package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotEnvFile is loaded from the working directory, if present, before env
// overrides are applied. Variables already set in the environment win.
const DotEnvFile = ".env"

type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Pagination PaginationConfig `yaml:"pagination"`
	Log        LogConfig        `yaml:"log"`
	Export     ExportConfig     `yaml:"export"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type SessionConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SealKey         string `yaml:"seal_key"` // hex, 32 bytes; empty stores the token in clear
}

type PaginationConfig struct {
	Page  int `yaml:"page"`
	Limit int `yaml:"limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
}

type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type SandboxConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// RateLimit is the per-IP budget for credential and public submit
	// requests in each RateWindow. Zero disables throttling.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:4444",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			CredentialsFile: defaultCredentialsFile(),
		},
		Pagination: PaginationConfig{
			Page:  1,
			Limit: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Export: ExportConfig{
			Dir:    ".",
			Format: "csv",
		},
		Sandbox: SandboxConfig{
			Host:       "127.0.0.1",
			Port:       4444,
			TokenTTL:   24 * time.Hour,
			RateLimit:  30,
			RateWindow: time.Minute,
		},
	}
}

func defaultCredentialsFile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".formdesk", "credentials.yaml")
	}
	return filepath.Join(home, ".formdesk", "credentials.yaml")
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMDESK_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FORMDESK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("FORMDESK_CREDENTIALS"); v != "" {
		cfg.Session.CredentialsFile = v
	}
	if v := os.Getenv("FORMDESK_TOKEN_KEY"); v != "" {
		cfg.Session.SealKey = v
	}
	if v := os.Getenv("FORMDESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FORMDESK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("FORMDESK_SANDBOX_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Sandbox.Port = port
		}
	}
	if v := os.Getenv("FORMDESK_JWT_SECRET"); v != "" {
		cfg.Sandbox.JWTSecret = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %v", c.API.Timeout)
	}
	if c.Session.CredentialsFile == "" {
		return errors.New("session.credentials_file is required")
	}
	if c.Pagination.Page < 1 {
		return fmt.Errorf("pagination.page must be at least 1, got %d", c.Pagination.Page)
	}
	if c.Pagination.Limit < 1 || c.Pagination.Limit > 100 {
		return fmt.Errorf("pagination.limit must be between 1 and 100, got %d", c.Pagination.Limit)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Export.Format == "" {
		return errors.New("export.format is required")
	}
	if c.Sandbox.Port < 1 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("sandbox.port must be between 1 and 65535, got %d", c.Sandbox.Port)
	}
	if c.Sandbox.TokenTTL <= 0 {
		return fmt.Errorf("sandbox.token_ttl must be positive, got %v", c.Sandbox.TokenTTL)
	}
	if c.Sandbox.RateLimit < 0 {
		return fmt.Errorf("sandbox.rate_limit must not be negative, got %d", c.Sandbox.RateLimit)
	}
	return nil
}

// SandboxAddr is the listen address of the sandbox backend.
func (c *Config) SandboxAddr() string {
	return fmt.Sprintf("%s:%d", c.Sandbox.Host, c.Sandbox.Port)
}
