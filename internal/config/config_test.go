package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS",
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "ORACLE_MODEL", "ORACLE_TIMEOUT_SECONDS",
		"SPAM_INDICATORS", "SESSION_TTL_MINUTES", "RETENTION_DAYS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "token123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramBotToken != "token123" {
		t.Errorf("token = %q", cfg.TelegramBotToken)
	}
	if cfg.DatabasePath != "./data/bot.db" {
		t.Errorf("db path = %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.OracleTimeout != 10*time.Second {
		t.Errorf("oracle timeout = %v", cfg.OracleTimeout)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.SessionTTL)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("retention = %d", cfg.RetentionDays)
	}
	if len(cfg.SpamIndicators) == 0 {
		t.Error("default spam indicators missing")
	}
	if len(cfg.AllowedUsers) != 0 {
		t.Errorf("allowed users = %v", cfg.AllowedUsers)
	}
}

func TestLoadMissingToken(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected error without TELEGRAM_BOT_TOKEN")
	}
}

func TestLoadAllowedUsers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("ALLOWED_USERS", "100, 200 ,300")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]int64{100, 200, 300}, cfg.AllowedUsers); diff != "" {
		t.Errorf("allowed users (-want +got):\n%s", diff)
	}
}

func TestLoadInvalidAllowedUsers(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("ALLOWED_USERS", "100,abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid user id")
	}
}

func TestLoadGoogleKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiAPIKey != "g-key" {
		t.Errorf("api key = %q, want fallback to GOOGLE_API_KEY", cfg.GeminiAPIKey)
	}
}

func TestLoadSpamIndicatorsOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("SPAM_INDICATORS", "free money, airdrop ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"free money", "airdrop"}, cfg.SpamIndicators); diff != "" {
		t.Errorf("spam indicators (-want +got):\n%s", diff)
	}
}

func TestLoadInvalidDurations(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad timeout", key: "ORACLE_TIMEOUT_SECONDS", val: "zero"},
		{name: "negative ttl", key: "SESSION_TTL_MINUTES", val: "-5"},
		{name: "zero retention", key: "RETENTION_DAYS", val: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TELEGRAM_BOT_TOKEN", "t")
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty list allows everyone", userID: 5, want: true},
		{name: "listed user", allowed: []int64{1, 2}, userID: 2, want: true},
		{name: "unlisted user", allowed: []int64{1, 2}, userID: 3, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowed}
			if got := cfg.IsUserAllowed(tt.userID); got != tt.want {
				t.Errorf("IsUserAllowed(%d) = %v, want %v", tt.userID, got, tt.want)
			}
		})
	}
}
