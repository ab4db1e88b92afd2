// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Extractor ExtractorConfig `yaml:"extractor" mapstructure:"extractor"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Mailer    MailerConfig    `yaml:"mailer" mapstructure:"mailer"`
	Refresh   RefreshConfig   `yaml:"refresh" mapstructure:"refresh"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Quota     QuotaConfig     `yaml:"quota" mapstructure:"quota"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ResolverConfig configures domain resolution.
type ResolverConfig struct {
	ProbeTimeoutSecs  int     `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	ProbesPerSecond   float64 `yaml:"probes_per_second" mapstructure:"probes_per_second"`
	PlausibilityFloor float64 `yaml:"plausibility_floor" mapstructure:"plausibility_floor"`
}

// ExtractorConfig configures the external extraction capability.
type ExtractorConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CallsPerSecond float64 `yaml:"calls_per_second" mapstructure:"calls_per_second"`
}

// PlacesConfig configures the third-party places signal source.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// MailerConfig configures the verification email relay.
type MailerConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	From    string `yaml:"from" mapstructure:"from"`
}

// RefreshConfig configures staleness-driven re-crawling.
type RefreshConfig struct {
	StalenessDays int `yaml:"staleness_days" mapstructure:"staleness_days"`
}

// DedupeConfig configures duplicate clustering.
type DedupeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	CandidateNameSim    float64 `yaml:"candidate_name_sim" mapstructure:"candidate_name_sim"`
}

// QuotaConfig configures approximate rate limits on discovery and import.
type QuotaConfig struct {
	DiscoveryPerMinute int  `yaml:"discovery_per_minute" mapstructure:"discovery_per_minute"`
	ImportsPerDay      int  `yaml:"imports_per_day" mapstructure:"imports_per_day"`
	FailOpen           bool `yaml:"fail_open" mapstructure:"fail_open"`
}

// AuthConfig configures the authorization policy evaluator.
type AuthConfig struct {
	SigningKey     string `yaml:"signing_key" mapstructure:"signing_key"`
	SchedulerToken string `yaml:"scheduler_token" mapstructure:"scheduler_token"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and FSD_* environment
// variables, with defaults applied.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("resolver.probe_timeout_secs", 10)
	v.SetDefault("resolver.probes_per_second", 2)
	v.SetDefault("resolver.plausibility_floor", 0.25)
	v.SetDefault("extractor.base_url", "https://api.siteharvest.dev/v1")
	v.SetDefault("extractor.timeout_secs", 60)
	v.SetDefault("extractor.calls_per_second", 1)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("mailer.base_url", "https://api.mailrelay.dev/v1")
	v.SetDefault("refresh.staleness_days", 180)
	v.SetDefault("dedupe.similarity_threshold", 0.75)
	v.SetDefault("dedupe.candidate_name_sim", 0.4)
	v.SetDefault("quota.discovery_per_minute", 60)
	v.SetDefault("quota.imports_per_day", 5000)
	v.SetDefault("quota.fail_open", true)

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
