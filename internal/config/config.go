package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type ReplyMode string

const (
	ReplyModeAssistant ReplyMode = "assistant"
	ReplyModeResponse  ReplyMode = "response"
)

type ReplayMode string

const (
	ReplayModeFull        ReplayMode = "full"
	ReplayModeIncremental ReplayMode = "incremental"
)

type Config struct {
	// Front ends
	BotToken        string `env:"BOT_TOKEN"`
	HTTPEnabled     bool   `env:"HTTP_ENABLED" envDefault:"true"`
	Port            int    `env:"PORT" envDefault:"3000"`
	HTTPAllowOrigin string `env:"HTTP_ALLOW_ORIGIN" envDefault:"*"`

	// Storage and credential sources
	DatabaseURL string `env:"DATABASE_URL"`
	TokensCSV   string `env:"TOKENS_CSV"`

	// OpenAI
	OpenAIKey      string     `env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string     `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AssistantID    string     `env:"OPENAI_ASSISTANT_ID"`
	PromptID       string     `env:"OPENAI_PROMPT_ID"`
	VectorStoreIDs []string   `env:"OPENAI_VECTOR_STORE_IDS" envSeparator:","`
	ReplyMode      ReplyMode  `env:"REPLY_MODE" envDefault:"assistant"`
	ReplayMode     ReplayMode `env:"REPLAY_MODE" envDefault:"incremental"`

	// Conversation
	Greeting string `env:"GREETING" envDefault:"Hallo, möchten Sie, dass ich Ihnen helfe, das perfekte Anschreiben für Sie zu verfassen?"`

	// Usage cost (USD per 1M tokens)
	ShowCost             bool            `env:"SHOW_COST" envDefault:"false"`
	PromptPricePer1M     decimal.Decimal `env:"PRICE_PROMPT_PER_1M" envDefault:"0"`
	CompletionPricePer1M decimal.Decimal `env:"PRICE_COMPLETION_PER_1M" envDefault:"0"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	RateLimitPerMinute int  `env:"RATE_LIMIT_PER_MINUTE" envDefault:"6"`

	// Logging
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int    `env:"LOG_TOPIC_ERROR"`
	LogTopicAccess    int    `env:"LOG_TOPIC_ACCESS"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ReplyMode {
	case ReplyModeAssistant, ReplyModeResponse:
	default:
		return fmt.Errorf("parse config: unknown REPLY_MODE %q", c.ReplyMode)
	}
	switch c.ReplayMode {
	case ReplayModeFull, ReplayModeIncremental:
	default:
		return fmt.Errorf("parse config: unknown REPLAY_MODE %q", c.ReplayMode)
	}
	if c.BotToken == "" && !c.HTTPEnabled {
		return errors.New("parse config: neither BOT_TOKEN nor HTTP_ENABLED set")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CostEnabled reports whether any token price has been configured.
func (c *Config) CostEnabled() bool {
	return c.PromptPricePer1M.IsPositive() || c.CompletionPricePer1M.IsPositive()
}
