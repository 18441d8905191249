package web

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"studentcenter/internal/adapters/ai"
	"studentcenter/internal/adapters/email"
	"studentcenter/internal/adapters/http/middleware"
	"studentcenter/internal/adapters/http/perf"
	"studentcenter/internal/adapters/storage/outbox"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/config"
)

// Stores holds the backends the handlers read and write.
type Stores struct {
	Tree   tree.Store
	Outbox outbox.Store // optional; expulsion and deletion emails are skipped when nil
	AI     ai.Generator
	Sender email.Sender // used by the operator outbox flush
}

// Global stores instance (set by NewMux)
var stores *Stores

// Global session store instance
var sessions *middleware.SessionStore

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// appConfig is the configuration NewMux was built with.
var appConfig config.Config

// loginLimiter throttles credential checks per client IP.
var loginLimiter *middleware.RateLimiter

// RateLimitPerSecond controls the per-IP rate limit. Tests can increase this.
var RateLimitPerSecond = 10

// csrfKey returns the configured key. Outside production a random key is
// generated per startup; Config.Validate rejects production without one.
func csrfKey(cfg config.Config) []byte {
	if cfg.CSRFKey != "" {
		return []byte(cfg.CSRFKey)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate CSRF key: " + err.Error())
	}
	slog.Warn("config_event", "event", "random_csrf_key", "hint", "set STUDENTCENTER_CSRF_KEY")
	return key
}

// NewMux wires HTTP handlers for the app.
func NewMux(s *Stores, cfg config.Config, collector *perf.Collector) http.Handler {
	if s.AI == nil {
		s.AI = ai.Disabled{}
	}
	stores = s
	appConfig = cfg
	perfCollector = collector
	sessions = middleware.NewSessionStore(cfg.SessionTTL)
	loginRate := cfg.LoginRateLimit
	if loginRate <= 0 {
		loginRate = 10
	}
	loginLimiter = middleware.NewRateLimiter(loginRate, time.Minute)

	mux := http.NewServeMux()
	registerRoutes(mux)

	// Rate limiter: configurable requests per second per IP (OWASP A04)
	limiter := middleware.NewRateLimiter(RateLimitPerSecond, time.Second)

	// Apply middleware: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey(cfg), middleware.CSRFOptions{Secure: cfg.SecureCookies}),
		middleware.Auth(sessions),
		middleware.RateLimit(limiter),
		middleware.Timing(collector),
	)
}

func cookieOptions() middleware.CookieOptions {
	return middleware.CookieOptions{Secure: appConfig.SecureCookies, MaxAge: sessions.TTL()}
}
