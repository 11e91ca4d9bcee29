package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/joho/godotenv/autoload"

	"newswatch_bot/internal/bot"
	"newswatch_bot/internal/config"
	"newswatch_bot/internal/delivery"
	"newswatch_bot/internal/filter"
	"newswatch_bot/internal/oracle"
	"newswatch_bot/internal/pipeline"
	"newswatch_bot/internal/scheduler"
	"newswatch_bot/internal/session"
	"newswatch_bot/internal/source"
	"newswatch_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var clf filter.Oracle
	if cfg.GeminiAPIKey != "" {
		g, err := oracle.NewGemini(ctx, cfg.GeminiAPIKey, cfg.OracleModel)
		if err != nil {
			log.Error("create oracle", "error", err)
			os.Exit(1)
		}
		clf = g
	} else {
		log.Warn("no oracle configured, smart filter runs rule stage only")
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Error("create bot api", "error", err)
		os.Exit(1)
	}

	tg := delivery.NewTelegram(api)
	engine := delivery.New(store,
		map[string]delivery.Sender{"telegram": tg},
		map[string]delivery.Resolver{"telegram": tg},
		log)

	f := filter.New(filter.Config{SpamIndicators: cfg.SpamIndicators}, clf, cfg.OracleTimeout, log)
	pipe := pipeline.New(store, f, engine, log)
	sessions := session.NewManager(store, cfg.SessionTTL, log)

	b := bot.New(api, store, cfg, sessions, pipe, engine, log)

	sources := map[string]source.Source{
		source.PlatformRSS: source.NewRSS(http.DefaultClient),
	}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	sched := scheduler.New(store, sources, pipe, retention, cfg.SessionTTL, log)

	log.Info("starting bot")

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
