package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 100, cfg.Generation.MaxLength)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 0.9, cfg.Generation.TopP)
	assert.Equal(t, 50, cfg.Generation.Window)
	assert.Equal(t, int64(-1), cfg.Generation.Seed)
	assert.Equal(t, 5*time.Minute, cfg.Server.CacheTTL)
	assert.True(t, cfg.History.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"temperature too high", func(c *Config) { c.Generation.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.Generation.Temperature = -0.1 }},
		{"zero top_p", func(c *Config) { c.Generation.TopP = 0 }},
		{"top_p above one", func(c *Config) { c.Generation.TopP = 1.1 }},
		{"zero window", func(c *Config) { c.Generation.Window = 0 }},
		{"negative max length", func(c *Config) { c.Generation.MaxLength = -1 }},
		{"stop probability", func(c *Config) { c.Generation.SentenceStopProbability = 2 }},
		{"zero epochs", func(c *Config) { c.Training.Epochs = 0 }},
		{"zero learning rate", func(c *Config) { c.Training.LearningRate = 0 }},
		{"test split of one", func(c *Config) { c.Training.TestSplit = 1 }},
		{"negative cache ttl", func(c *Config) { c.Server.CacheTTL = -time.Second }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
generation:
  max_length: 25
  temperature: 0.2
corpus:
  path: ~/corpus.txt
server:
  cache_ttl: 30s
  api_key: secret
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Generation.MaxLength)
	assert.Equal(t, 0.2, cfg.Generation.Temperature)
	assert.Equal(t, 0.9, cfg.Generation.TopP, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "corpus.txt"), cfg.Corpus.Path)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  top_p: 0.5\n"), 0644))

	t.Setenv("SLM_GENERATION_TOP_P", "0.75")
	t.Setenv("SLM_SERVER_ADDR", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, cfg.Generation.TopP)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  window: 0\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestExpandPaths(t *testing.T) {
	t.Setenv("SLM_TEST_DIR", "/data")
	cfg := DefaultConfig()
	cfg.Model.Dir = "$SLM_TEST_DIR/models"
	cfg.ExpandPaths()
	assert.Equal(t, "/data/models", cfg.Model.Dir)
}
