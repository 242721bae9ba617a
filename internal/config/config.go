package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	LLM      LLMConfig
	UI       UIConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Suggest  SuggestConfig
	Taxonomy TaxonomyConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// LLMConfig holds provider settings. Provider is "heuristic" or "openai".
type LLMConfig struct {
	Provider  string
	APIKeyEnv string `mapstructure:"api_key_env"`
	APIKey    string `mapstructure:"api_key"`
	Model     string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	DateFormat     string `mapstructure:"date_format"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	PageSize       int    `mapstructure:"page_size"`
}

// LogConfig controls the file logger. The TUI owns the terminal, so logs never go to stdout.
type LogConfig struct {
	Path  string
	Level string
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string
}

// SuggestConfig tunes the suggestion engine.
type SuggestConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TaxonomyConfig points at an optional YAML taxonomy overriding the built-in one.
type TaxonomyConfig struct {
	Path string
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgergrid")
}

// ConfigPath returns the file Load reads and Save writes.
func ConfigPath() string {
	if p := os.Getenv("LEDGERGRID_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "ledgergrid", "config.toml")
}

// Load reads configuration from file and env. Env var overrides use prefix LEDGERGRID_.
// An explicit path wins over LEDGERGRID_CONFIG.
func Load(path string) (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(dataDir(), "ledgergrid.db"))
	v.SetDefault("llm.provider", "heuristic")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("ui.date_format", "2006-01-02")
	v.SetDefault("ui.currency_symbol", "$")
	v.SetDefault("ui.page_size", 50)
	v.SetDefault("log.path", filepath.Join(dataDir(), "ledgergrid.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("suggest.cache_ttl", "5m")
	v.SetDefault("taxonomy.path", "")

	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv("LEDGERGRID_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledgergrid"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERGRID")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing file is fine; a malformed one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.UI.PageSize <= 0 {
		c.UI.PageSize = 50
	}
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
// The API key is stored in plain text in the config file; prefer env vars or the key store.
func Save(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.api_key_env", cfg.LLM.APIKeyEnv)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("ui.currency_symbol", cfg.UI.CurrencySymbol)
	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("metrics.addr", cfg.Metrics.Addr)
	v.Set("suggest.cache_ttl", cfg.Suggest.CacheTTL.String())
	v.Set("taxonomy.path", cfg.Taxonomy.Path)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
