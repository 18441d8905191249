package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.TreeBackend != BackendSQLite || cfg.DBPath != "studentcenter.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.OutboxInterval != time.Minute || cfg.SessionTTL != 168*time.Hour || cfg.IsProduction() {
		t.Errorf("durations = %v %v", cfg.OutboxInterval, cfg.SessionTTL)
	}
	if cfg.SlowQuery != 50*time.Millisecond {
		t.Errorf("SlowQuery = %v, want 50ms", cfg.SlowQuery)
	}
}

func TestParse_FromEnv(t *testing.T) {
	t.Setenv("STUDENTCENTER_TREE_BACKEND", " Mongo ")
	t.Setenv("STUDENTCENTER_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("STUDENTCENTER_OUTBOX_INTERVAL", "30s")
	t.Setenv("STUDENTCENTER_OPERATOR_EMAILS", "Ops@Example.com, root@example.com")
	t.Setenv("STUDENTCENTER_LOG_LEVEL", "DEBUG")
	t.Setenv("STUDENTCENTER_SLOW_QUERY", "200ms")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TreeBackend != BackendMongo || cfg.OutboxInterval != 30*time.Second || cfg.SlowQuery != 200*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.IsOperator("ops@example.com") || !cfg.IsOperator(" ROOT@example.com") || cfg.IsOperator("") || cfg.IsOperator("x@example.com") {
		t.Errorf("operators = %v", cfg.OperatorEmails)
	}
	if lvl, _ := cfg.SlogLevel(); lvl != slog.LevelDebug {
		t.Errorf("level = %v", lvl)
	}
}

func TestValidate(t *testing.T) {
	base := Config{TreeBackend: BackendSQLite, LogLevel: "info"}
	key := "0123456789abcdef0123456789abcdef"
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"sqlite ok", func(*Config) {}, nil},
		{"unknown backend", func(c *Config) { c.TreeBackend = "redis" }, ErrUnknownBackend},
		{"mongo without uri", func(c *Config) { c.TreeBackend = BackendMongo }, ErrMongoURI},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrLogLevel},
		{"production without csrf key", func(c *Config) { c.Env = "production"; c.SecureCookies = true }, ErrProduction},
		{"production insecure cookies", func(c *Config) { c.Env = "production"; c.CSRFKey = key }, ErrProduction},
		{"production ok", func(c *Config) { c.Env = "production"; c.CSRFKey = key; c.SecureCookies = true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("STUDENTCENTER_ADDR=:9999\nSTUDENTCENTER_DB_PATH=from-file.db\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("STUDENTCENTER_DB_PATH", "from-env.db")
	t.Cleanup(func() { os.Unsetenv("STUDENTCENTER_ADDR") })

	cfg, err := Load(filepath.Join(dir, "missing.env"), file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q, want value from file", cfg.Addr)
	}
	if cfg.DBPath != "from-env.db" {
		t.Errorf("db path = %q, want the environment to win", cfg.DBPath)
	}
}
