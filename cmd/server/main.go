package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"studentcenter/internal/adapters/ai"
	emailPkg "studentcenter/internal/adapters/email"
	web "studentcenter/internal/adapters/http"
	"studentcenter/internal/adapters/http/perf"
	"studentcenter/internal/adapters/storage"
	outboxStorePkg "studentcenter/internal/adapters/storage/outbox"
	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/orchestrators"
	"studentcenter/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("config_event", "event", "load_failed", "error", err)
		os.Exit(1)
	}
	closeLog := setupLogging(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SQLite always backs the outbox; it also holds the tree unless mongo is selected.
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		fatal("failed to open database", err)
	}
	defer db.Close()

	// Connection pool settings for WAL mode
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		fatal("database unreachable", err)
	}
	if err := storage.InitDB(db); err != nil {
		fatal("failed to initialize schema", err)
	}

	// Performance instrumentation: wrap DB with timing, create collector
	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)

	var treeStore *tree.Tree
	switch cfg.TreeBackend {
	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
		if err == nil {
			err = client.Ping(connectCtx, nil)
		}
		cancel()
		if err != nil {
			fatal("mongo unreachable", err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		treeStore = tree.NewMongo(client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))
	default:
		treeStore = tree.NewSQLite(timedDB)
	}
	treeStore.SetCollector(collector)
	defer treeStore.Close()

	var sender emailPkg.Sender
	if cfg.ResendKey != "" {
		sender = emailPkg.NewResendSender(cfg.ResendKey, cfg.EmailFrom)
		slog.Info("email_event", "event", "sender_configured", "provider", "resend")
	} else {
		sender = emailPkg.NewNoopSender()
		if cfg.IsProduction() {
			slog.Warn("email_event", "event", "delivery_disabled", "hint", "set STUDENTCENTER_RESEND_KEY")
		}
	}

	var generator ai.Generator = ai.Disabled{}
	if cfg.GeminiKey != "" {
		generator = ai.NewGemini(cfg.GeminiKey, cfg.GeminiModel)
	}

	outboxStore := outboxStorePkg.NewSQLiteStore(timedDB)
	stopOutbox := orchestrators.StartOutboxRetryScheduler(ctx, orchestrators.OutboxRetryDeps{
		OutboxStore: outboxStore,
		Sender:      sender,
		Now:         time.Now,
	}, cfg.OutboxInterval)
	defer stopOutbox()

	handler := web.NewMux(&web.Stores{
		Tree:   treeStore,
		Outbox: outboxStore,
		AI:     generator,
		Sender: sender,
	}, cfg, collector)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server_event", "event", "shutdown_failed", "error", err)
		}
	}()

	slog.Info("server_event", "event", "starting", "version", version, "addr", cfg.Addr,
		"env", cfg.Env, "backend", cfg.TreeBackend, "schema", storage.SchemaVersion)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal("server failed", err)
	}
	slog.Info("server_event", "event", "stopped")
}

// setupLogging installs a JSON slog handler on stdout, teeing into a rotated
// file when LOG_FILE is set. The returned func flushes the file.
func setupLogging(cfg config.Config) func() {
	level, _ := cfg.SlogLevel()
	var out io.Writer = os.Stdout
	closer := func() {}
	if cfg.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file)
		closer = func() { _ = file.Close() }
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})))
	return closer
}

func fatal(msg string, err error) {
	slog.Error("server_event", "event", "fatal", "msg", msg, "error", err)
	os.Exit(1)
}
