package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
discord:
  token: "test-token"
ai:
  gemini:
    api_key: "test-key"
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "!", cfg.Discord.CommandPrefix)
	require.Equal(t, "gemini", cfg.AI.Provider)
	require.Equal(t, 768, cfg.AI.EmbeddingDimension)

	require.Equal(t, 100, cfg.Ingest.PageSize)
	require.Equal(t, 100*time.Millisecond, cfg.Ingest.MessageDelay)
	require.Equal(t, time.Second, cfg.Ingest.PageDelay)

	require.EqualValues(t, 20, cfg.Quota.TrialMessageLimit)

	require.Equal(t, 50, cfg.Summary.BatchSize)
	require.Equal(t, time.Second, cfg.Summary.BatchDelay)
	require.Equal(t, 7*24*time.Hour, cfg.Summary.Window)

	require.Equal(t, 0.5, cfg.Search.MatchThreshold)
	require.Equal(t, 4, cfg.Search.MatchCount)

	require.Contains(t, cfg.Scheduler.Tasks, "weekly_summary")
	require.Contains(t, cfg.Scheduler.Tasks, "sql_maintenance")
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
log:
  level: "debug"
quota:
  trial_message_limit: 100
summary:
  window: "48h"
`))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Log.Level)
	require.EqualValues(t, 100, cfg.Quota.TrialMessageLimit)
	require.Equal(t, 48*time.Hour, cfg.Summary.Window)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("BOT_DISCORD_TOKEN", "env-token")
	t.Setenv("BOT_AI_GEMINI_API_KEY", "env-key")
	t.Setenv("BOT_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "env-token", cfg.Discord.Token)
	require.Equal(t, "env-key", cfg.AI.Gemini.APIKey)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRequiresDiscordToken(t *testing.T) {
	_, err := Load(writeConfig(t, `
ai:
  gemini:
    api_key: "test-key"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Token")
}

func TestLoadRequiresAPIKeyForActiveProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
discord:
  token: "test-token"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ai.gemini.api_key")

	_, err = Load(writeConfig(t, `
discord:
  token: "test-token"
ai:
  provider: "openai"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ai.openai.api_key")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
discord:
  token: "test-token"
ai:
  provider: "oracle"
  gemini:
    api_key: "test-key"
`))
	require.Error(t, err)
}

func TestLoadRejectsOversizedPageSize(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
ingest:
  page_size: 500
`))
	require.Error(t, err)
}
