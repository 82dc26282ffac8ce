// Package config loads and validates the application configuration from
// config.yaml, BOT_* environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the bot.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Search    SearchConfig    `mapstructure:"search"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DiscordConfig holds the Discord session settings.
type DiscordConfig struct {
	Token         string `mapstructure:"token" validate:"required"`
	AdminUserID   string `mapstructure:"admin_user_id"`
	CommandPrefix string `mapstructure:"command_prefix" validate:"required"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// AIConfig selects and configures the AI provider backends.
type AIConfig struct {
	Provider           string        `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	Temperature        float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries         int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay         time.Duration `mapstructure:"retry_delay" validate:"min=100ms,max=1m"`
	EmbeddingDimension int           `mapstructure:"embedding_dimension" validate:"required,gt=0"`
	Gemini             GeminiConfig  `mapstructure:"gemini"`
	OpenAI             OpenAIConfig  `mapstructure:"openai"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// IngestConfig controls historical backfill paging and pacing.
type IngestConfig struct {
	PageSize     int           `mapstructure:"page_size" validate:"required,min=1,max=100"`
	MessageDelay time.Duration `mapstructure:"message_delay" validate:"min=0"`
	PageDelay    time.Duration `mapstructure:"page_delay" validate:"min=0"`
}

// QuotaConfig controls per-guild admission limits.
type QuotaConfig struct {
	TrialMessageLimit int64 `mapstructure:"trial_message_limit" validate:"required,gt=0"`
}

// SummaryConfig controls the map-reduce summarizer.
type SummaryConfig struct {
	BatchSize  int           `mapstructure:"batch_size" validate:"required,min=1"`
	BatchDelay time.Duration `mapstructure:"batch_delay" validate:"min=0"`
	Window     time.Duration `mapstructure:"window" validate:"required,min=1h"`
}

// SearchConfig controls similarity search over stored embeddings.
type SearchConfig struct {
	MatchThreshold float64 `mapstructure:"match_threshold" validate:"min=0,max=1"`
	MatchCount     int     `mapstructure:"match_count" validate:"required,min=1"`
}

// ProfileConfig points at the external profile service.
type ProfileConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s"`
}

// SchedulerConfig holds cron schedules for background tasks, keyed by
// task name as registered in the task registry.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a single scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from the given YAML file (optional) and BOT_*
// environment variables, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against the struct validation tags
// plus the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.AI.Provider {
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("invalid configuration: ai.gemini.api_key is required when ai.provider is gemini")
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("invalid configuration: ai.openai.api_key is required when ai.provider is openai")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	// Secrets default to empty so viper binds their BOT_* env variables
	// even when no config file sets them.
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.admin_user_id", "")
	v.SetDefault("discord.command_prefix", "!")

	v.SetDefault("database.path", "digestbot.db")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.retry_delay", 5*time.Second)
	v.SetDefault("ai.embedding_dimension", 768)
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.embedding_model", "text-embedding-004")
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.embedding_model", "text-embedding-3-small")

	v.SetDefault("ingest.page_size", 100)
	v.SetDefault("ingest.message_delay", 100*time.Millisecond)
	v.SetDefault("ingest.page_delay", time.Second)

	v.SetDefault("quota.trial_message_limit", 20)

	v.SetDefault("summary.batch_size", 50)
	v.SetDefault("summary.batch_delay", time.Second)
	v.SetDefault("summary.window", 7*24*time.Hour)

	v.SetDefault("search.match_threshold", 0.5)
	v.SetDefault("search.match_count", 4)

	v.SetDefault("profile.base_url", "")
	v.SetDefault("profile.timeout", 30*time.Second)

	v.SetDefault("scheduler.tasks.weekly_summary.enabled", true)
	v.SetDefault("scheduler.tasks.weekly_summary.schedule", "0 0 9 * * 1")
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * *")
}
