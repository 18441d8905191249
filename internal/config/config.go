// Package config loads server settings from STUDENTCENTER_* environment
// variables, after merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "STUDENTCENTER_"

// Tree store backends
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config errors
var (
	ErrUnknownBackend = errors.New("tree backend must be one of: sqlite, mongo")
	ErrMongoURI       = errors.New("mongo backend requires STUDENTCENTER_MONGO_URI")
	ErrProduction     = errors.New("production requires STUDENTCENTER_CSRF_KEY (32 bytes) and secure cookies")
	ErrLogLevel       = errors.New("log level must be one of: debug, info, warn, error")
)

// Config is the full server configuration.
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Addr string `env:"ADDR" envDefault:":8080"`

	TreeBackend     string `env:"TREE_BACKEND" envDefault:"sqlite"`
	DBPath          string `env:"DB_PATH" envDefault:"studentcenter.db"`
	MongoURI        string `env:"MONGO_URI"`
	MongoDatabase   string `env:"MONGO_DATABASE" envDefault:"studentcenter"`
	MongoCollection string `env:"MONGO_COLLECTION" envDefault:"tree"`

	ResendKey string `env:"RESEND_KEY"`
	EmailFrom string `env:"EMAIL_FROM" envDefault:"Centro de Estudiantes <noreply@example.com>"`

	GeminiKey   string `env:"GEMINI_API_KEY"`
	GeminiModel string `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`

	// SlowQuery is the duration above which SQL calls are logged as slow.
	SlowQuery time.Duration `env:"SLOW_QUERY" envDefault:"50ms"`

	OutboxInterval time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1m"`
	CSRFKey        string        `env:"CSRF_KEY"`
	SecureCookies  bool          `env:"SECURE_COOKIES"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	LoginRateLimit int           `env:"LOGIN_RATE_LIMIT" envDefault:"10"`

	// OperatorEmails may read /api/admin/perf.
	OperatorEmails []string `env:"OPERATOR_EMAILS" envSeparator:","`
}

// Load merges the given .env files (missing files are skipped) into the
// process environment and parses it. Variables already set win over the files.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
		slog.Info("config_event", "event", "dotenv_loaded", "file", f)
	}
	return Parse()
}

// Parse reads the environment without touching any file.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.TreeBackend = strings.ToLower(strings.TrimSpace(cfg.TreeBackend))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	for i, e := range cfg.OperatorEmails {
		cfg.OperatorEmails[i] = strings.ToLower(strings.TrimSpace(e))
	}
	return cfg, cfg.Validate()
}

// IsProduction reports whether Env is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks backend choice and the production requirements.
func (c Config) Validate() error {
	switch c.TreeBackend {
	case BackendSQLite:
	case BackendMongo:
		if c.MongoURI == "" {
			return ErrMongoURI
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.TreeBackend)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.IsProduction() && (len(c.CSRFKey) != 32 || !c.SecureCookies) {
		return ErrProduction
	}
	return nil
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrLogLevel, c.LogLevel)
}

// IsOperator reports whether email may use the operator endpoints.
func (c Config) IsOperator(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, op := range c.OperatorEmails {
		if op == email {
			return true
		}
	}
	return false
}
