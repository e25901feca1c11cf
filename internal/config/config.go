// Package config loads server configuration from defaults, an optional
// apiresource.yaml file and APIRESOURCE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// EnvPrefix is prepended to every environment override, so that
// api.base_path is read from APIRESOURCE_API_BASE_PATH.
const EnvPrefix = "APIRESOURCE"

// Config is the full server configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	API        APIConfig        `mapstructure:"api"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Gzip            bool          `mapstructure:"gzip"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// APIConfig configures routing and serialization.
type APIConfig struct {
	BasePath              string   `mapstructure:"base_path"`
	ForceEntityProperties []string `mapstructure:"force_entity_properties"`
	MaxDepth              int      `mapstructure:"max_depth"`
	CollectionFormat      string   `mapstructure:"collection_format"`
	MaxBodyBytes          int64    `mapstructure:"max_body_bytes"`
}

type PaginationConfig struct {
	ItemsPerPage       int  `mapstructure:"items_per_page"`
	MaxItemsPerPage    int  `mapstructure:"max_items_per_page"`
	ClientItemsPerPage bool `mapstructure:"client_items_per_page"`
}

// StorageConfig selects and configures the storage driver.
type StorageConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	// Seed loads the example data set into an empty memory store.
	Seed bool `mapstructure:"seed"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Disabled turns bearer token validation off; every caller is anonymous.
	Disabled bool `mapstructure:"disabled"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads configuration. An explicit path must exist; without one the
// working directory is searched for apiresource.yaml, which is optional.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("apiresource")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.API.BasePath = normalizeBasePath(cfg.API.BasePath)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.gzip", true)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("api.base_path", "/api")
	v.SetDefault("api.force_entity_properties", []string{"uid"})
	v.SetDefault("api.max_depth", 1)
	v.SetDefault("api.collection_format", "hydra")
	v.SetDefault("api.max_body_bytes", 1<<20)

	v.SetDefault("pagination.items_per_page", 30)
	v.SetDefault("pagination.max_items_per_page", 100)
	v.SetDefault("pagination.client_items_per_page", true)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 25)
	v.SetDefault("storage.statement_timeout", 30*time.Second)
	v.SetDefault("storage.seed", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "apiresource")
	v.SetDefault("auth.token_ttl", 15*time.Minute)
	v.SetDefault("auth.disabled", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "apiresource")
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (expected %s or %s)", c.Storage.Driver, DriverMemory, DriverPostgres)
	}

	switch c.API.CollectionFormat {
	case "hydra", "simple":
	default:
		return fmt.Errorf("unknown api.collection_format %q", c.API.CollectionFormat)
	}
	if c.API.MaxDepth < 0 {
		return errors.New("api.max_depth must not be negative")
	}
	if c.API.MaxBodyBytes <= 0 {
		return errors.New("api.max_body_bytes must be positive")
	}

	if c.Pagination.ItemsPerPage <= 0 {
		return errors.New("pagination.items_per_page must be positive")
	}
	if c.Pagination.MaxItemsPerPage < c.Pagination.ItemsPerPage {
		return errors.New("pagination.max_items_per_page must not be below items_per_page")
	}

	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required unless auth.disabled is set")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	return nil
}

// normalizeBasePath turns "api", "/api/" and "/api" into "/api"; an empty
// value mounts resources at the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
