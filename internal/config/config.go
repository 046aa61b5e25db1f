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
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Places       PlacesConfig       `yaml:"places" mapstructure:"places"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server. A SubmitRatePerSec of 0
// turns off submission rate limiting.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	CORSOrigins       []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	SubmitRatePerSec  float64  `yaml:"submit_rate_per_sec" mapstructure:"submit_rate_per_sec"`
	SubmitBurst       int      `yaml:"submit_burst" mapstructure:"submit_burst"`
	ShutdownTimeoutMS int      `yaml:"shutdown_timeout_ms" mapstructure:"shutdown_timeout_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// VerificationConfig holds the quorum thresholds and vote retry policy.
type VerificationConfig struct {
	ApproveThreshold int `yaml:"approve_threshold" mapstructure:"approve_threshold"`
	RejectThreshold  int `yaml:"reject_threshold" mapstructure:"reject_threshold"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMS   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// ScoringConfig holds the keyword vocabulary and signal weights.
type ScoringConfig struct {
	Keywords      []string `yaml:"keywords" mapstructure:"keywords"`
	KeywordWeight float64  `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	PhotoWeight   float64  `yaml:"photo_weight" mapstructure:"photo_weight"`
	CoordsWeight  float64  `yaml:"coords_weight" mapstructure:"coords_weight"`
}

// PlacesConfig configures candidate creation and spot listing.
type PlacesConfig struct {
	DefaultCountry  string `yaml:"default_country" mapstructure:"default_country"`
	Geocoder        string `yaml:"geocoder" mapstructure:"geocoder"`
	SpotPageSize    int    `yaml:"spot_page_size" mapstructure:"spot_page_size"`
	SpotMaxPageSize int    `yaml:"spot_max_page_size" mapstructure:"spot_max_page_size"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.submit_rate_per_sec", 1.0)
	v.SetDefault("server.submit_burst", 5)
	v.SetDefault("server.shutdown_timeout_ms", 10000)
	v.SetDefault("verification.approve_threshold", 2)
	v.SetDefault("verification.reject_threshold", 3)
	v.SetDefault("verification.retry_attempts", 3)
	v.SetDefault("verification.retry_backoff_ms", 50)
	v.SetDefault("scoring.keywords", []string{"amala", "abula", "gbegiri", "ewedu", "buka"})
	v.SetDefault("scoring.keyword_weight", 0.35)
	v.SetDefault("scoring.photo_weight", 0.10)
	v.SetDefault("scoring.coords_weight", 0.10)
	v.SetDefault("places.default_country", "Nigeria")
	v.SetDefault("places.geocoder", "passthrough")
	v.SetDefault("places.spot_page_size", 10)
	v.SetDefault("places.spot_max_page_size", 10)

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
