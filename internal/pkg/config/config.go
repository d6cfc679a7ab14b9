package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Place sources for the registry.
const (
	PlaceSourceFile     = "file"
	PlaceSourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	DBName        string `mapstructure:"dbname"`
	SSLMode       string `mapstructure:"sslmode"`
	MaxConns      int32  `mapstructure:"max_conns"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// TrackingConfig tunes per-device proximity trackers.
type TrackingConfig struct {
	MinInterval       time.Duration `mapstructure:"min_interval"`
	MinDistance       float64       `mapstructure:"min_distance"`
	InitialFixTimeout time.Duration `mapstructure:"initial_fix_timeout"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
	ResetOnStart      bool          `mapstructure:"reset_on_start"`
	// Devices streamed from NATS by cmd/tracker.
	Devices []string `mapstructure:"devices"`
}

type RoutingConfig struct {
	DefaultMode string        `mapstructure:"default_mode"`
	Jitter      float64       `mapstructure:"jitter"`
	Spacing     float64       `mapstructure:"spacing"`
	Mapbox      MapboxConfig  `mapstructure:"mapbox"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MapboxConfig enables the directions backend when Token is set.
type MapboxConfig struct {
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

type RegistryConfig struct {
	Source string `mapstructure:"source"`
	// Path to a YAML place file. Empty means the built-in places.
	Path string `mapstructure:"path"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	Enabled   bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using process environment")
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tourguide")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tourguide")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.migrations_dir", "migrations")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", true)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("tracking.min_interval", "5s")
	v.SetDefault("tracking.min_distance", 10.0)
	v.SetDefault("tracking.initial_fix_timeout", "10s")
	v.SetDefault("tracking.idle_ttl", "30m")
	v.SetDefault("tracking.reset_on_start", true)
	v.SetDefault("tracking.devices", []string{})
	v.SetDefault("routing.default_mode", "walking")
	v.SetDefault("routing.jitter", 0.001)
	v.SetDefault("routing.spacing", 500.0)
	v.SetDefault("routing.timeout", "5s")
	v.SetDefault("routing.mapbox.token", "")
	v.SetDefault("routing.mapbox.base_url", "https://api.mapbox.com")
	v.SetDefault("registry.source", PlaceSourceFile)
	v.SetDefault("registry.path", "")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "narration")
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TOURGUIDE_ROUTING_MAPBOX_TOKEN → routing.mapbox.token
	v.SetEnvPrefix("TOURGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Registry.Source {
	case PlaceSourceFile:
	case PlaceSourcePostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("registry.source must be %q or %q, got %q",
			PlaceSourceFile, PlaceSourcePostgres, c.Registry.Source))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats is enabled")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey is enabled")
	}
	if c.Temporal.Enabled && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal is enabled")
	}

	if c.Tracking.MinInterval < 0 {
		errs = append(errs, "tracking.min_interval must not be negative")
	}
	if c.Tracking.MinDistance < 0 {
		errs = append(errs, "tracking.min_distance must not be negative")
	}
	if c.Tracking.InitialFixTimeout <= 0 {
		errs = append(errs, "tracking.initial_fix_timeout must be positive")
	}

	switch strings.ToLower(c.Routing.DefaultMode) {
	case "", "walking", "driving":
	default:
		errs = append(errs, fmt.Sprintf("routing.default_mode must be walking or driving, got %q", c.Routing.DefaultMode))
	}
	if c.Routing.Jitter < 0 {
		errs = append(errs, "routing.jitter must not be negative")
	}
	if c.Routing.Spacing <= 0 {
		errs = append(errs, "routing.spacing must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
