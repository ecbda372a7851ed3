package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sync daemon. Values are read by
// Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the loopback API the UI layer talks to.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig points at the authoritative fitness service.
type RemoteConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// SyncConfig tunes trigger debouncing and the bounded retry chain.
type SyncConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AuthConfig carries the bearer credential issued by the external token
// provider; acquisition and refresh happen outside this process.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// LogConfig configures structured logging; File enables rotating file
// output for unattended runs.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// LoadConfig reads configuration from file or environment variables,
// e.g. remote.base_url -> REMOTE_BASE_URL.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", "127.0.0.1:7878")
	viper.SetDefault("database.path", "fitness-sync.db")
	viper.SetDefault("remote.base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("remote.timeout", "15s")
	viper.SetDefault("remote.probe_interval", "15s")
	viper.SetDefault("sync.debounce", "750ms")
	viper.SetDefault("sync.backoff_base", "30s")
	viper.SetDefault("sync.backoff_cap", "10m")
	viper.SetDefault("sync.max_retries", 5)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.max_size_mb", 20)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 14)

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; env vars and defaults may be enough.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
