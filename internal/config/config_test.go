package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MLSERVE_MODEL_DIR", "")
	t.Setenv("MLSERVE_DB_PATH", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 5000 || cfg.History.Cap != 20 || cfg.History.Backend != BackendSQLite {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Security.PredictRateLimit != 50 || cfg.Security.BatchRateLimit != 10 || cfg.Security.RateWindow != time.Minute {
		t.Fatalf("unexpected security defaults %+v", cfg.Security)
	}
	if cfg.Models.InfoCacheTTL != time.Minute {
		t.Fatalf("unexpected cache ttl %v", cfg.Models.InfoCacheTTL)
	}
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	t.Setenv("MLSERVE_TEST_MODELS", "/srv/models")
	t.Setenv("PORT", "7001")
	t.Setenv("MLSERVE_MODEL_DIR", "")
	t.Setenv("MLSERVE_DB_PATH", "/tmp/override.json")
	path := filepath.Join(t.TempDir(), "mlserve.yaml")
	content := `
server:
  port: 6000
  read_timeout: 5s
models:
  dir: ${MLSERVE_TEST_MODELS}
history:
  backend: file
  cap: 7
security:
  allowed_origins: ["http://localhost:3000"]
  predict_rate_limit: 3
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Models.Dir != "/srv/models" {
		t.Fatalf("env not expanded: %q", cfg.Models.Dir)
	}
	if cfg.Server.Port != 7001 {
		t.Fatalf("PORT should override file, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("unexpected read timeout %v", cfg.Server.ReadTimeout)
	}
	if cfg.History.Backend != BackendFile || cfg.History.Cap != 7 || cfg.History.Path != "/tmp/override.json" {
		t.Fatalf("unexpected history %+v", cfg.History)
	}
	if cfg.Security.PredictRateLimit != 3 || cfg.Security.BatchRateLimit != 10 {
		t.Fatalf("unexpected security %+v", cfg.Security)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.History.Backend = "redis"
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"history.backend", "log.level", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %s", err, want)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [1, 2"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestConfigureLoggerWritesFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "mlserve.log")
	lc := LogConfig{Level: "warn", Format: "json", File: logPath, MaxSizeMB: 1}
	logger := logrus.New()
	closer, err := lc.ConfigureLogger(logger)
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("bundle unavailable")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "hidden") || !strings.Contains(string(data), "bundle unavailable") {
		t.Fatalf("unexpected log contents %q", data)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("unexpected level %v", logger.GetLevel())
	}
}
