package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port               int      `mapstructure:"port"`
	DatabaseDriver     string   `mapstructure:"database_driver"` // sqlite | postgres
	DatabasePath       string   `mapstructure:"database_path"`   // sqlite file
	DatabaseDSN        string   `mapstructure:"database_dsn"`    // postgres connection string
	LogLevel           string   `mapstructure:"log_level"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	SessionSecret      string   `mapstructure:"session_secret"`
	SessionTTLHours    int      `mapstructure:"session_ttl_hours"`
	SessionSecure      bool     `mapstructure:"session_secure"`     // Secure cookie attribute; off for plain-HTTP dev
	LockoutWindowSec   int      `mapstructure:"lockout_window_sec"` // trailing window for lockout queries
	LockoutThreshold   int      `mapstructure:"lockout_threshold"`  // failed attempts per username before lock
	PasswordMinLength  int      `mapstructure:"password_min_length"`
	LoginRatePerMin    int      `mapstructure:"login_rate_per_min"` // per-IP login requests; 0 = unlimited
	LoginRateBurst     int      `mapstructure:"login_rate_burst"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`  // HTTP read/write; 0 = server default
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"` // graceful shutdown wait
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/credfort/")
	viper.AddConfigPath("$HOME/.credfort")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./credfort.db")
	viper.SetDefault("database_dsn", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("session_secret", "")
	viper.SetDefault("session_ttl_hours", 24)
	viper.SetDefault("session_secure", false)
	viper.SetDefault("lockout_window_sec", 300)
	viper.SetDefault("lockout_threshold", 2)
	viper.SetDefault("password_min_length", 8)
	viper.SetDefault("login_rate_per_min", 5)
	viper.SetDefault("login_rate_burst", 5)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	// Environment variables
	viper.SetEnvPrefix("CREDFORT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
