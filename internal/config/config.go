// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dreamseed2025/formation-intake/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	VAPI      VAPIConfig      `yaml:"vapi" mapstructure:"vapi"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Specs     SpecsConfig     `yaml:"specs" mapstructure:"specs"`
	Backfill  BackfillConfig  `yaml:"backfill" mapstructure:"backfill"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// VAPIConfig holds voice-provider credentials and the assistant id expected
// for each call stage. Stages without an id skip the assistant check.
type VAPIConfig struct {
	APIKey     string         `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string         `yaml:"base_url" mapstructure:"base_url"`
	Assistants map[int]string `yaml:"assistants" mapstructure:"assistants"`
}

// AnthropicConfig holds the optional model-backed extraction settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds Notion API credentials and the field-spec database id.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	FieldDB string `yaml:"field_db" mapstructure:"field_db"`
}

// SpecsConfig selects where field specifications are loaded from.
// Source is one of "builtin", "file", or "notion".
type SpecsConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// BackfillConfig configures historical call reprocessing.
type BackfillConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("vapi.base_url", "https://api.vapi.ai")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("specs.source", "builtin")
	v.SetDefault("backfill.concurrency", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration needed to run in the given mode
// ("serve", "backfill", or "migrate"), collecting every problem before
// reporting.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireDB := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	requireSpecs := func() {
		switch c.Specs.Source {
		case "builtin":
		case "file":
			if c.Specs.Path == "" {
				problems = append(problems, "specs.path is required when specs.source is file")
			}
		case "notion":
			if c.Notion.Token == "" {
				problems = append(problems, "notion.token is required when specs.source is notion")
			}
			if c.Notion.FieldDB == "" {
				problems = append(problems, "notion.field_db is required when specs.source is notion")
			}
		default:
			problems = append(problems, "specs.source must be builtin, file, or notion")
		}
	}

	switch mode {
	case "serve":
		requireDB()
		requireSpecs()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "backfill":
		requireDB()
		requireSpecs()
		if c.VAPI.APIKey == "" {
			problems = append(problems, "vapi.api_key is required for backfill")
		}
		if c.Backfill.Concurrency < 1 || c.Backfill.Concurrency > 32 {
			problems = append(problems, "backfill.concurrency must be between 1 and 32")
		}
	case "migrate":
		requireDB()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
