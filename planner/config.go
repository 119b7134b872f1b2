package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the full environment surface of the engine. Everything has
// a workable default except the Arke credentials.
type Config struct {
	// External-system gateway
	ArkeBaseURL  string
	ArkeUsername string
	ArkePassword string

	// Operator channel
	TelegramToken  string
	TelegramChatID int64

	// Advisor
	GeminiAPIKey string
	GeminiModel  string

	// HTTP surface
	ListenAddr string

	// Working-hours clock
	ShiftStartHour int
	ShiftEndHour   int

	// Storage, first non-empty backend wins: postgres, redis, memory
	DatabaseURL string
	RedisAddr   string

	// Email notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       []string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// LoadConfig reads the environment and validates the parts the engine
// cannot run without.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ArkeBaseURL:  envOr("ARKE_BASE_URL", "http://localhost:8000"),
		ArkeUsername: os.Getenv("ARKE_USERNAME"),
		ArkePassword: os.Getenv("ARKE_PASSWORD"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.5-flash"),

		ListenAddr: envOr("FACTORY_LISTEN_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
	}

	if cfg.ArkeUsername == "" || cfg.ArkePassword == "" {
		return nil, fmt.Errorf("ARKE_USERNAME and ARKE_PASSWORD are required")
	}

	var err error
	if cfg.ShiftStartHour, err = envIntOr("SHIFT_START_HOUR", 8); err != nil {
		return nil, err
	}
	if cfg.ShiftEndHour, err = envIntOr("SHIFT_END_HOUR", 16); err != nil {
		return nil, err
	}
	if cfg.ShiftStartHour < 0 || cfg.ShiftEndHour > 24 || cfg.ShiftStartHour >= cfg.ShiftEndHour {
		return nil, fmt.Errorf("invalid shift window %d-%d", cfg.ShiftStartHour, cfg.ShiftEndHour)
	}
	if cfg.SMTPPort, err = envIntOr("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if to := os.Getenv("SMTP_TO"); to != "" {
		for _, addr := range strings.Split(to, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.SMTPTo = append(cfg.SMTPTo, addr)
			}
		}
	}
	return cfg, nil
}
