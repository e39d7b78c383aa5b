package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"fittrack.db"`

	// LlmProvider selects the text-generation backend: openai, gemini or none.
	LlmProvider    string        `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenaiKey      string        `env:"OPENAI_API_KEY"`
	LlmModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	GeminiKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel    string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash-latest"`
	GeminiBaseURL  string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	LlmTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	LlmTemperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	LlmMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1024"`

	HistoryLimit  int   `env:"HISTORY_LIMIT" envDefault:"50"`
	DefaultUserID int64 `env:"DEFAULT_USER_ID" envDefault:"1"`

	// ArchiveSchedule is a robfig/cron spec; "off" disables the sweeper.
	ArchiveSchedule string        `env:"ARCHIVE_SCHEDULE" envDefault:"@daily"`
	ArchiveAfter    time.Duration `env:"ARCHIVE_AFTER" envDefault:"720h"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ArchiveEnabled reports whether the archive sweeper should be scheduled.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveSchedule != "" && c.ArchiveSchedule != "off"
}
