// Package config loads the CLI and server configuration from a
// notetaker.yaml file, NOTETAKER_* environment variables and flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/enrich/llm"
)

// Providers of the enrichment completer.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

type Config struct {
	Store   Store   `mapstructure:"store"`
	Persist Persist `mapstructure:"persist"`
	Enrich  Enrich  `mapstructure:"enrich"`
	Log     Log     `mapstructure:"log"`
	Server  Server  `mapstructure:"server"`
	Events  Events  `mapstructure:"events"`
}

type Store struct {
	Adapter  string `mapstructure:"adapter"`
	Path     string `mapstructure:"path"`
	Git      bool   `mapstructure:"git"`
	ReadOnly bool   `mapstructure:"read_only"`
	Watch    bool   `mapstructure:"watch"`
}

type Persist struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type Enrich struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Rate     float64       `mapstructure:"rate"` // requests per second
	Burst    int           `mapstructure:"burst"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Events struct {
	Buffer int `mapstructure:"buffer"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.adapter", platform.AdapterFS)
	v.SetDefault("store.path", "./notes-vault")
	v.SetDefault("store.git", false)
	v.SetDefault("store.read_only", false)
	v.SetDefault("store.watch", false)
	v.SetDefault("persist.debounce", "1500ms")
	v.SetDefault("enrich.debounce", "3s")
	v.SetDefault("enrich.provider", ProviderOpenAI)
	v.SetDefault("enrich.model", "")
	v.SetDefault("enrich.base_url", "")
	v.SetDefault("enrich.rate", 1.0)
	v.SetDefault("enrich.burst", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("server.addr", "127.0.0.1:7410")
	v.SetDefault("events.buffer", 100)
}

// New returns a viper instance with the defaults, the environment binding
// and the config search path set. An explicit file replaces the search.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("NOTETAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v
	}
	v.SetConfigName("notetaker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "notetaker"))
	}
	return v
}

// Load reads the config file, if any, and decodes the result. A missing
// file is not an error.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Adapter {
	case platform.AdapterFS, platform.AdapterSQLite, platform.AdapterMemory:
	default:
		errs = append(errs, fmt.Errorf("store.adapter: unknown adapter %q", c.Store.Adapter))
	}
	switch c.Enrich.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderNone, "":
	default:
		errs = append(errs, fmt.Errorf("enrich.provider: unknown provider %q", c.Enrich.Provider))
	}
	if c.Persist.Debounce < 0 || c.Enrich.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce windows must not be negative"))
	}
	if c.Enrich.Rate < 0 || c.Enrich.Burst < 0 {
		errs = append(errs, fmt.Errorf("enrich.rate and enrich.burst must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Processor builds the enrichment processor, or nil when the provider is
// none.
func (c Config) Processor(logger *slog.Logger) enrich.Processor {
	var completer llm.Completer
	switch c.Enrich.Provider {
	case ProviderAnthropic:
		completer = llm.Anthropic{BaseURL: c.Enrich.BaseURL, Model: c.Enrich.Model}
	case ProviderNone:
		return nil
	default:
		completer = llm.OpenAI{BaseURL: c.Enrich.BaseURL, Model: c.Enrich.Model}
	}
	if c.Enrich.Rate > 0 {
		burst := c.Enrich.Burst
		if burst < 1 {
			burst = 1
		}
		completer = llm.NewLimited(completer, c.Enrich.Rate, burst)
	}
	return llm.NewProcessor(completer, llm.WithLogger(logger))
}

// Options translates the configuration into platform options.
func (c Config) Options(logger *slog.Logger) []platform.Option {
	opts := []platform.Option{
		platform.WithAdapter(c.Store.Adapter),
		platform.WithVersioning(c.Store.Git),
		platform.WithReadOnly(c.Store.ReadOnly),
		platform.WithWatch(c.Store.Watch),
		platform.WithPersistDelay(c.Persist.Debounce),
		platform.WithEnrichDelay(c.Enrich.Debounce),
		platform.WithEventBuffer(c.Events.Buffer),
		platform.WithLogger(logger),
		platform.WithWatcherErrorHandler(func(err error) {
			logger.Error("watcher failed", "error", err)
		}),
	}
	if p := c.Processor(logger); p != nil {
		opts = append(opts, platform.WithProcessor(p))
	}
	return opts
}
