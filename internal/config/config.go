package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	LLM      LLMConfig
	Limits   LimitsConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	AdminToken   string
	AllowOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type TelegramConfig struct {
	BotToken string
}

type LLMConfig struct {
	APIKey        string
	BaseURL       string
	DefaultModel  string
	SystemPrompt  string
	MaxTokens     int
	Timeout       time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	FallbackReply string
}

type LimitsConfig struct {
	FreeDailyLimit     int
	HistoryLimit       int
	HistorySlack       int
	ReferralRewardDays int
	TimezoneName       string
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// Timezone is the reference location for daily quota bucketing.
func (l LimitsConfig) Timezone() *time.Location {
	loc, err := time.LoadLocation(l.TimezoneName)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			AdminToken:   getEnv("ADMIN_TOKEN", ""),
			AllowOrigins: getEnv("ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "assistant"),
			Password: getEnv("DB_PASSWORD", "assistant"),
			Name:     getEnv("DB_NAME", "assistant"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("LLM_API_KEY", ""),
			BaseURL:       getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			DefaultModel:  getEnv("LLM_DEFAULT_MODEL", "gpt-4.1-mini"),
			SystemPrompt:  getEnv("LLM_SYSTEM_PROMPT", "You are a helpful AI assistant. Answer clearly and concisely."),
			MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 200),
			Timeout:       getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxAttempts:   getEnvInt("LLM_MAX_ATTEMPTS", 3),
			RetryBackoff:  getEnvDuration("LLM_RETRY_BACKOFF", 2*time.Second),
			FallbackReply: getEnv("LLM_FALLBACK_REPLY", "Sorry, I'm having trouble answering right now. Please try again in a minute."),
		},
		Limits: LimitsConfig{
			FreeDailyLimit:     getEnvInt("FREE_DAILY_LIMIT", 9),
			HistoryLimit:       getEnvInt("HISTORY_LIMIT", 10),
			HistorySlack:       getEnvInt("HISTORY_SLACK", 30),
			ReferralRewardDays: getEnvInt("REFERRAL_REWARD_DAYS", 3),
			TimezoneName:       getEnv("TIMEZONE", "UTC"),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
