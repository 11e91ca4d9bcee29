// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default spam indicators applied when SPAM_INDICATORS is not set.
var defaultSpamIndicators = []string{
	"t.me/joinchat",
	"promo code",
	"limited offer",
	"click here",
	"subscribe now",
}

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	GeminiAPIKey     string
	OracleModel      string
	OracleTimeout    time.Duration
	SpamIndicators   []string
	SessionTTL       time.Duration
	RetentionDays    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	oracleTimeout, err := intEnv("ORACLE_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	spamIndicators := defaultSpamIndicators
	if raw := os.Getenv("SPAM_INDICATORS"); raw != "" {
		spamIndicators = nil
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				spamIndicators = append(spamIndicators, s)
			}
		}
	}

	sessionTTL, err := intEnv("SESSION_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}

	retentionDays, err := intEnv("RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		GeminiAPIKey:     apiKey,
		OracleModel:      os.Getenv("ORACLE_MODEL"),
		OracleTimeout:    time.Duration(oracleTimeout) * time.Second,
		SpamIndicators:   spamIndicators,
		SessionTTL:       time.Duration(sessionTTL) * time.Minute,
		RetentionDays:    retentionDays,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
