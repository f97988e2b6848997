package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Redis
	RedisURL string `mapstructure:"REDIS_URL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Ownership feed (FPL)
	FPLEmail     string `mapstructure:"FPL_EMAIL"`
	FPLPassword  string `mapstructure:"FPL_PASSWORD"`
	FPLRateLimit int    `mapstructure:"FPL_RATE_LIMIT"`

	// Projection feed (RotoWire)
	RotoWireUsername string `mapstructure:"ROTOWIRE_USERNAME"`
	RotoWirePassword string `mapstructure:"ROTOWIRE_PASSWORD"`

	// External API resilience
	ExternalAPITimeout      time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`

	// Decision engine
	Budget           int    `mapstructure:"BUDGET"`
	ClubQuota        int    `mapstructure:"CLUB_QUOTA"`
	FixtureLookahead int    `mapstructure:"FIXTURE_LOOKAHEAD"`
	ScoreModel       string `mapstructure:"SCORE_MODEL"`
	SolverTimeout    int    `mapstructure:"SOLVER_TIMEOUT"`
	ScoutWorkers     int    `mapstructure:"SCOUT_WORKERS"`

	// Background refresh
	DataRefreshInterval string `mapstructure:"DATA_REFRESH_INTERVAL"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("FPL_EMAIL", "")
	viper.SetDefault("FPL_PASSWORD", "")
	viper.SetDefault("FPL_RATE_LIMIT", 10) // requests per second
	viper.SetDefault("ROTOWIRE_USERNAME", "")
	viper.SetDefault("ROTOWIRE_PASSWORD", "")
	viper.SetDefault("EXTERNAL_API_TIMEOUT", "30s")
	viper.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5) // trip after 5 consecutive failures
	viper.SetDefault("BUDGET", 1000)                 // price tenths, 100.0m
	viper.SetDefault("CLUB_QUOTA", 3)
	viper.SetDefault("FIXTURE_LOOKAHEAD", 6)
	viper.SetDefault("SCORE_MODEL", "quality") // "projection" needs RotoWire credentials
	viper.SetDefault("SOLVER_TIMEOUT", 30)     // seconds per solve
	viper.SetDefault("SCOUT_WORKERS", 4)
	viper.SetDefault("DATA_REFRESH_INTERVAL", "2h")

	// Read from environment
	viper.AutomaticEnv()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Parse CORS origins from comma-separated string
	if corsStr := viper.GetString("CORS_ORIGINS"); corsStr != "" {
		config.CorsOrigins = strings.Split(corsStr, ",")
	}

	return &config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasProjectionFeed reports whether RotoWire credentials are configured.
func (c *Config) HasProjectionFeed() bool {
	return c.RotoWireUsername != ""
}
