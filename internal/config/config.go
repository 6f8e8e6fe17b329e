// Package config loads application configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridatlas/siterank-cli/internal/scoring"
)

// Config holds the full application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Catalog  CatalogConfig  `yaml:"catalog" mapstructure:"catalog"`
	Scoring  scoring.Config `yaml:"scoring" mapstructure:"scoring"`
	Personas PersonaConfig  `yaml:"personas" mapstructure:"personas"`
	TNUoS    TNUoSConfig    `yaml:"tnuos" mapstructure:"tnuos"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig selects the infrastructure feature store backend.
type SourceConfig struct {
	// Driver is one of "postgres", "sqlite", or "shapefile".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	// ShapefileDir holds one .shp per category, named after the category.
	ShapefileDir string `yaml:"shapefile_dir" mapstructure:"shapefile_dir"`
	// RateLimitPerSec throttles postgres feature queries. Zero disables.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// CatalogConfig configures the spatial index build and its TTL cache.
type CatalogConfig struct {
	CellSizeDeg      float64 `yaml:"cell_size_deg" mapstructure:"cell_size_deg"`
	TTLMinutes       int     `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	LoadMaxAttempts  int     `yaml:"load_max_attempts" mapstructure:"load_max_attempts"`
	LoadBackoffMs    int     `yaml:"load_backoff_ms" mapstructure:"load_backoff_ms"`
	LoadMaxBackoffMs int     `yaml:"load_max_backoff_ms" mapstructure:"load_max_backoff_ms"`
}

// PersonaConfig points at the persona definitions file. Empty means the
// built-in defaults.
type PersonaConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// TNUoSConfig points at the tariff zone file. Empty means the built-in
// coarse GB bands.
type TNUoSConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// BatchConfig configures batch scoring runs.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when no file or environment
// overrides anything.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Driver:     "sqlite",
			SQLitePath: "siterank.db",
		},
		Catalog: CatalogConfig{
			CellSizeDeg: 0.5,
			TTLMinutes:  30,
		},
		Scoring: scoring.DefaultConfig(),
		Batch:   BatchConfig{Concurrency: 8},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads configuration from file and environment on top of Default.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITERANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Registering keys here is what makes the env overrides
	// visible to Unmarshal; the scoring tables keep their defaults from
	// the pre-populated struct below.
	v.SetDefault("source.driver", "sqlite")
	v.SetDefault("source.database_url", "")
	v.SetDefault("source.sqlite_path", "siterank.db")
	v.SetDefault("source.shapefile_dir", "")
	v.SetDefault("source.rate_limit_per_sec", 0.0)
	v.SetDefault("catalog.cell_size_deg", 0.5)
	v.SetDefault("catalog.ttl_minutes", 30)
	v.SetDefault("catalog.load_max_attempts", 0)
	v.SetDefault("catalog.load_backoff_ms", 0)
	v.SetDefault("catalog.load_max_backoff_ms", 0)
	v.SetDefault("personas.file", "")
	v.SetDefault("tnuos.file", "")
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints not covered by component
// validators.
func (c Config) Validate() error {
	switch c.Source.Driver {
	case "postgres", "sqlite", "shapefile":
	default:
		return eris.Errorf("config: unknown source.driver %q", c.Source.Driver)
	}
	if c.Catalog.CellSizeDeg <= 0 {
		return eris.New("config: catalog.cell_size_deg must be > 0")
	}
	if c.Catalog.TTLMinutes <= 0 {
		return eris.New("config: catalog.ttl_minutes must be > 0")
	}
	if c.Batch.Concurrency <= 0 {
		return eris.New("config: batch.concurrency must be > 0")
	}
	return c.Scoring.Validate()
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
