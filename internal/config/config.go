// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeocodeConfig configures the external address lookup and the enrichment run.
type GeocodeConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	City           string  `yaml:"city" mapstructure:"city"`
	Province       string  `yaml:"province" mapstructure:"province"`
	Country        string  `yaml:"country" mapstructure:"country"`
	CountryCode    string  `yaml:"country_code" mapstructure:"country_code"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BatchSize      int     `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency    int     `yaml:"concurrency" mapstructure:"concurrency"`
	Bounds         Bounds  `yaml:"bounds" mapstructure:"bounds"`
}

// Bounds is the geographic envelope accepted results must fall inside.
// Defaults cover British Columbia.
type Bounds struct {
	MinLat float64 `yaml:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `yaml:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `yaml:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `yaml:"max_lon" mapstructure:"max_lon"`
}

// IngestConfig configures raw record ingestion.
type IngestConfig struct {
	SourceCity  string `yaml:"source_city" mapstructure:"source_city"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
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
	v.SetEnvPrefix("PERMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "postgres://postgres@localhost:5432/permits")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "PermitFinder/1.0 (permit tracking application)")
	v.SetDefault("geocode.city", "Vancouver")
	v.SetDefault("geocode.province", "British Columbia")
	v.SetDefault("geocode.country", "Canada")
	v.SetDefault("geocode.country_code", "ca")
	v.SetDefault("geocode.requests_per_sec", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.batch_size", 50)
	v.SetDefault("geocode.concurrency", 4)
	v.SetDefault("geocode.bounds.min_lat", 48.0)
	v.SetDefault("geocode.bounds.max_lat", 60.5)
	v.SetDefault("geocode.bounds.min_lon", -140.0)
	v.SetDefault("geocode.bounds.max_lon", -114.0)
	v.SetDefault("ingest.source_city", "Vancouver")
	v.SetDefault("ingest.concurrency", 4)

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

// Validate checks the loaded configuration for values no command can run
// with. Problems are collected so one pass reports everything.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Driver {
	case "postgres", "sqlite", "":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if c.Geocode.RequestsPerSec <= 0 {
		problems = append(problems, "geocode.requests_per_sec must be > 0")
	}
	if c.Geocode.BatchSize < 1 || c.Geocode.BatchSize > 1000 {
		problems = append(problems, "geocode.batch_size must be between 1 and 1000")
	}
	if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 32 {
		problems = append(problems, "geocode.concurrency must be between 1 and 32")
	}
	if c.Geocode.Bounds.MinLat >= c.Geocode.Bounds.MaxLat {
		problems = append(problems, "geocode.bounds.min_lat must be < max_lat")
	}
	if c.Geocode.Bounds.MinLon >= c.Geocode.Bounds.MaxLon {
		problems = append(problems, "geocode.bounds.min_lon must be < max_lon")
	}

	if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 32 {
		problems = append(problems, "ingest.concurrency must be between 1 and 32")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
