// Package config provides configuration for the chat relay and its terminal client.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Token stream source
	LLMMode       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Timeouts
	GenerationTimeout time.Duration
	PersistTimeout    time.Duration

	// Conversation titles
	TitleMaxChars int

	// Dead-letter sink for failed background writes
	RedisAddr     string
	DeadLetterKey string

	// WebSocket binding
	WSMaxMessageSize int64
	WSWriteTimeout   time.Duration

	// Client
	RelayURL string

	// Logging
	LogMode  string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	return &Config{
		HTTPPort:          v.GetInt("HTTP_PORT"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		LLMMode:           v.GetString("LLM_MODE"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:       v.GetString("OPENAI_MODEL"),
		GenerationTimeout: time.Duration(v.GetInt("GENERATION_TIMEOUT_MS")) * time.Millisecond,
		PersistTimeout:    time.Duration(v.GetInt("PERSIST_TIMEOUT_MS")) * time.Millisecond,
		TitleMaxChars:     v.GetInt("TITLE_MAX_CHARS"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		DeadLetterKey:     v.GetString("DEADLETTER_KEY"),
		WSMaxMessageSize:  v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		WSWriteTimeout:    time.Duration(v.GetInt("WS_WRITE_TIMEOUT_MS")) * time.Millisecond,
		RelayURL:          v.GetString("RELAY_URL"),
		LogMode:           v.GetString("LOG_MODE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DATABASE_URL", "file:chat.db?mode=rwc&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate")
	v.SetDefault("LLM_MODE", "")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GENERATION_TIMEOUT_MS", 30000)
	v.SetDefault("PERSIST_TIMEOUT_MS", 10000)
	v.SetDefault("TITLE_MAX_CHARS", 30)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("DEADLETTER_KEY", "chat:deadletter")
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 1<<20)
	v.SetDefault("WS_WRITE_TIMEOUT_MS", 10000)
	v.SetDefault("RELAY_URL", "http://localhost:8080")
	v.SetDefault("LOG_MODE", "dev")
	v.SetDefault("LOG_LEVEL", "info")
}
