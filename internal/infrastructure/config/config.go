package config

import (
	"fmt"

	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Bus     BusConfig
	Logging LogConfig
	Server  ServerConfig
}

// BusConfig locates the kernel object namespace shared by cooperating processes.
type BusConfig struct {
	Dir    string `envconfig:"SHMBUS_DIR" default:"/dev/shm"`
	Prefix string `envconfig:"SHMBUS_PREFIX" default:"shmbus_"`
	Perm   uint32 `envconfig:"SHMBUS_PERM" default:"0644"`
}

// Namespace converts the bus settings into a paths.Namespace.
func (b BusConfig) Namespace() paths.Namespace {
	return paths.New(b.Dir, b.Prefix, b.Perm)
}

// Validate rejects bus settings that would not isolate the bus's objects.
func (b BusConfig) Validate() error {
	return b.Namespace().Validate()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ServerConfig holds the status endpoint configuration.
type ServerConfig struct {
	Host        string   `envconfig:"SHMBUS_HTTP_HOST" default:"127.0.0.1"`
	Port        string   `envconfig:"SHMBUS_HTTP_PORT" default:"9477"`
	Enabled     bool     `envconfig:"SHMBUS_HTTP_ENABLED" default:"true"`
	CORSOrigins []string `envconfig:"SHMBUS_CORS_ORIGINS"`
	RateLimit   int      `envconfig:"SHMBUS_HTTP_RPS" default:"50"`
	RateBurst   int      `envconfig:"SHMBUS_HTTP_BURST" default:"100"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Bus.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bus config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			Dir:    paths.DefaultDir,
			Prefix: paths.DefaultPrefix,
			Perm:   paths.DefaultPerm,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      "9477",
			Enabled:   true,
			RateLimit: 50,
			RateBurst: 100,
		},
	}
}
