package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Store     StoreConfig
	Validator ValidatorConfig
	Consensus ConsensusConfig
	Privacy   PrivacyConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SourcesConfig holds the external lookup tier configuration
type SourcesConfig struct {
	CommunityBaseURL string        `mapstructure:"community_base_url"`
	FoodBaseURL      string        `mapstructure:"food_base_url"`
	BeautyBaseURL    string        `mapstructure:"beauty_base_url"`
	BooksBaseURL     string        `mapstructure:"books_base_url"`
	GenericBaseURL   string        `mapstructure:"generic_base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	GenericPerMinute int           `mapstructure:"generic_per_minute"`
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ValidatorConfig holds the score reconciliation tunables
type ValidatorConfig struct {
	ReconcileTolerance float64 `mapstructure:"reconcile_tolerance"`
	DiscrepancyCap     int     `mapstructure:"discrepancy_cap"`
}

// ConsensusConfig holds the consensus weighting tunables
type ConsensusConfig struct {
	SteadyStateWeight    float64 `mapstructure:"steady_state_weight"`
	EarlySampleThreshold int     `mapstructure:"early_sample_threshold"`
	TrustThreshold       int     `mapstructure:"trust_threshold"`
}

// PrivacyConfig holds location privacy tunables
type PrivacyConfig struct {
	JitterMinMeters  float64 `mapstructure:"jitter_min_meters"`
	JitterMaxMeters  float64 `mapstructure:"jitter_max_meters"`
	GeohashPrecision int     `mapstructure:"geohash_precision"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shelfscore/")

	// Environment variable settings
	v.SetEnvPrefix("SHELFSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Source defaults
	v.SetDefault("sources.community_base_url", "https://community.shelfscore.app")
	v.SetDefault("sources.food_base_url", "https://world.openfoodfacts.org")
	v.SetDefault("sources.beauty_base_url", "https://world.openbeautyfacts.org")
	v.SetDefault("sources.books_base_url", "https://openlibrary.org")
	v.SetDefault("sources.generic_base_url", "https://api.upcitemdb.com")
	v.SetDefault("sources.timeout", "8s")
	v.SetDefault("sources.user_agent", "ShelfScore/1.0")
	v.SetDefault("sources.generic_per_minute", 6)

	// Store defaults
	v.SetDefault("store.path", "data/shelfscore.db")

	// Validator defaults
	v.SetDefault("validator.reconcile_tolerance", 5)
	v.SetDefault("validator.discrepancy_cap", 60)

	// Consensus defaults
	v.SetDefault("consensus.steady_state_weight", 0.9)
	v.SetDefault("consensus.early_sample_threshold", 3)
	v.SetDefault("consensus.trust_threshold", 2)

	// Privacy defaults
	v.SetDefault("privacy.jitter_min_meters", 50)
	v.SetDefault("privacy.jitter_max_meters", 100)
	v.SetDefault("privacy.geohash_precision", 6)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Store.Path == "" {
		return fmt.Errorf("store path is required (set SHELFSCORE_STORE_PATH)")
	}

	if config.Sources.Timeout < 5*time.Second || config.Sources.Timeout > 15*time.Second {
		return fmt.Errorf("source timeout must be between 5s and 15s, got: %s", config.Sources.Timeout)
	}

	if config.Consensus.SteadyStateWeight <= 0 || config.Consensus.SteadyStateWeight >= 1 {
		return fmt.Errorf("steady state weight must be in (0,1), got: %v", config.Consensus.SteadyStateWeight)
	}

	if config.Privacy.JitterMinMeters <= 0 || config.Privacy.JitterMaxMeters <= config.Privacy.JitterMinMeters {
		return fmt.Errorf("jitter range must satisfy 0 < min < max, got: [%v, %v]",
			config.Privacy.JitterMinMeters, config.Privacy.JitterMaxMeters)
	}

	if config.Privacy.GeohashPrecision < 1 || config.Privacy.GeohashPrecision > 12 {
		return fmt.Errorf("geohash precision must be between 1 and 12, got: %d", config.Privacy.GeohashPrecision)
	}

	return nil
}
