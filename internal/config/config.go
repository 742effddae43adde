package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// History backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Config is the service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	History  HistoryConfig  `yaml:"history"`
	Security SecurityConfig `yaml:"security"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ModelsConfig struct {
	Dir string `yaml:"dir"`
	// InfoCacheTTL is how long the models info response is reused.
	InfoCacheTTL time.Duration `yaml:"info_cache_ttl"`
}

type HistoryConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Cap     int    `yaml:"cap"`
}

type SecurityConfig struct {
	AllowedOrigins   []string      `yaml:"allowed_origins"`
	PredictRateLimit int           `yaml:"predict_rate_limit"`
	BatchRateLimit   int           `yaml:"batch_rate_limit"`
	RateWindow       time.Duration `yaml:"rate_window"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotated copy of the log; empty logs to stderr only.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads the YAML file at path, expands ${ENV} references, applies
// defaults and environment overrides, and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logrus.WithField("path", path).Info("config file not found; using defaults")
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			content := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(cfg)
	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("MLSERVE_MODEL_DIR")); v != "" {
		cfg.Models.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("MLSERVE_DB_PATH")); v != "" {
		cfg.History.Path = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Models.Dir == "" {
		cfg.Models.Dir = "models"
	}
	if cfg.Models.InfoCacheTTL == 0 {
		cfg.Models.InfoCacheTTL = 60 * time.Second
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = BackendSQLite
	}
	if cfg.History.Path == "" {
		if cfg.History.Backend == BackendFile {
			cfg.History.Path = "data/history.json"
		} else {
			cfg.History.Path = "data/mlserve.db"
		}
	}
	if cfg.History.Cap == 0 {
		cfg.History.Cap = 20
	}

	if len(cfg.Security.AllowedOrigins) == 0 {
		cfg.Security.AllowedOrigins = []string{"*"}
	}
	if cfg.Security.PredictRateLimit == 0 {
		cfg.Security.PredictRateLimit = 50
	}
	if cfg.Security.BatchRateLimit == 0 {
		cfg.Security.BatchRateLimit = 10
	}
	if cfg.Security.RateWindow == 0 {
		cfg.Security.RateWindow = time.Minute
	}
	if cfg.Security.MaxUploadBytes == 0 {
		cfg.Security.MaxUploadBytes = 10 << 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, "server timeouts must not be negative")
	}
	switch c.History.Backend {
	case BackendSQLite, BackendFile:
	default:
		errs = append(errs, fmt.Sprintf("history.backend %q must be %q or %q", c.History.Backend, BackendSQLite, BackendFile))
	}
	if c.History.Cap < 0 {
		errs = append(errs, "history.cap must not be negative")
	}
	if c.Security.PredictRateLimit < 0 || c.Security.BatchRateLimit < 0 {
		errs = append(errs, "security rate limits must not be negative")
	}
	if c.Security.RateWindow < 0 {
		errs = append(errs, "security.rate_window must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is not a logrus level", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
