package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Generation GenerationConfig `mapstructure:"generation"`
	Training   TrainingConfig   `mapstructure:"training"`
	Server     ServerConfig     `mapstructure:"server"`
	History    HistoryConfig    `mapstructure:"history"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ModelConfig struct {
	Dir     string `mapstructure:"dir"`
	Default string `mapstructure:"default"` // Empty generates from the corpus or prompt
}

type CorpusConfig struct {
	Path string `mapstructure:"path"`
}

type GenerationConfig struct {
	MaxLength               int     `mapstructure:"max_length"`
	Temperature             float64 `mapstructure:"temperature"`
	TopP                    float64 `mapstructure:"top_p"`
	Window                  int     `mapstructure:"window"`
	Seed                    int64   `mapstructure:"seed"`
	SentenceStopProbability float64 `mapstructure:"sentence_stop_probability"`
}

type TrainingConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	LearningRate float64 `mapstructure:"learning_rate"`
	L2           float64 `mapstructure:"l2"`
	TestSplit    float64 `mapstructure:"test_split"`
	Seed         int64   `mapstructure:"seed"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	APIKey      string        `mapstructure:"api_key"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	Development bool          `mapstructure:"development"`
}

type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
	JSON    bool   `mapstructure:"json"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	slmDir := filepath.Join(home, ".slm")

	return &Config{
		Model: ModelConfig{
			Dir:     filepath.Join(slmDir, "models"),
			Default: "",
		},
		Generation: GenerationConfig{
			MaxLength:               100,
			Temperature:             0.7,
			TopP:                    0.9,
			Window:                  50,
			Seed:                    -1,
			SentenceStopProbability: 0.3,
		},
		Training: TrainingConfig{
			Epochs:       10,
			LearningRate: 0.1,
			L2:           1e-4,
			TestSplit:    0.1,
			Seed:         42,
		},
		Server: ServerConfig{
			Addr:     ":8080",
			CacheTTL: 5 * time.Minute,
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(slmDir, "history.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    filepath.Join(slmDir, "slm.log"),
			Console: true,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	// Config file setup
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".slm"))
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// Environment variables
	v.SetEnvPrefix("SLM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is okay, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand paths
	cfg.ExpandPaths()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	g := c.Generation
	if g.Temperature < 0.0 || g.Temperature > 2.0 {
		return errors.New("generation.temperature must be between 0.0 and 2.0")
	}
	if g.TopP <= 0.0 || g.TopP > 1.0 {
		return errors.New("generation.top_p must be greater than 0.0 and at most 1.0")
	}
	if g.Window < 1 {
		return errors.New("generation.window must be at least 1")
	}
	if g.MaxLength < 0 {
		return errors.New("generation.max_length must not be negative")
	}
	if g.SentenceStopProbability < 0.0 || g.SentenceStopProbability > 1.0 {
		return errors.New("generation.sentence_stop_probability must be between 0.0 and 1.0")
	}

	t := c.Training
	if t.Epochs < 1 {
		return errors.New("training.epochs must be at least 1")
	}
	if t.LearningRate <= 0 {
		return errors.New("training.learning_rate must be positive")
	}
	if t.TestSplit < 0.0 || t.TestSplit >= 1.0 {
		return errors.New("training.test_split must be in [0.0, 1.0)")
	}

	if c.Server.CacheTTL < 0 {
		return errors.New("server.cache_ttl must not be negative")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// ExpandPaths expands ~ and environment variables in paths
func (c *Config) ExpandPaths() {
	c.Model.Dir = expandPath(c.Model.Dir)
	c.Corpus.Path = expandPath(c.Corpus.Path)
	c.History.DBPath = expandPath(c.History.DBPath)
	c.Logging.File = expandPath(c.Logging.File)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("model.dir", cfg.Model.Dir)
	v.SetDefault("model.default", cfg.Model.Default)

	v.SetDefault("corpus.path", cfg.Corpus.Path)

	v.SetDefault("generation.max_length", cfg.Generation.MaxLength)
	v.SetDefault("generation.temperature", cfg.Generation.Temperature)
	v.SetDefault("generation.top_p", cfg.Generation.TopP)
	v.SetDefault("generation.window", cfg.Generation.Window)
	v.SetDefault("generation.seed", cfg.Generation.Seed)
	v.SetDefault("generation.sentence_stop_probability", cfg.Generation.SentenceStopProbability)

	v.SetDefault("training.epochs", cfg.Training.Epochs)
	v.SetDefault("training.learning_rate", cfg.Training.LearningRate)
	v.SetDefault("training.l2", cfg.Training.L2)
	v.SetDefault("training.test_split", cfg.Training.TestSplit)
	v.SetDefault("training.seed", cfg.Training.Seed)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.api_key", cfg.Server.APIKey)
	v.SetDefault("server.cache_ttl", cfg.Server.CacheTTL)
	v.SetDefault("server.development", cfg.Server.Development)

	v.SetDefault("history.enabled", cfg.History.Enabled)
	v.SetDefault("history.db_path", cfg.History.DBPath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}
