// Package config loads prepdeck settings from defaults, an optional config
// file, a .env file and PREPDECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/gateway"
)

// Supported persistence backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// EnvPrefix prefixes every environment variable, e.g. PREPDECK_LOG_LEVEL.
const EnvPrefix = "PREPDECK"

// Config holds all prepdeck configuration.
type Config struct {
	// Backend selects where records live.
	// Values: "sqlite", "postgres", "redis", "mongo", "memory"
	Backend string `mapstructure:"backend"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Events    EventsConfig    `mapstructure:"events"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Flashcard FlashcardConfig `mapstructure:"flashcard"`
	Guidance  GuidanceConfig  `mapstructure:"guidance"`

	// TimeZone decides calendar days for streaks. Default: "Local".
	TimeZone string `mapstructure:"timezone"`
}

// DatabaseConfig configures the SQL backends and the activity log.
type DatabaseConfig struct {
	Path        string `mapstructure:"path"` // SQLite file; default under XDG_DATA_HOME
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// EventsConfig configures domain event publishing. An empty AMQPURI
// disables publishing.
type EventsConfig struct {
	AMQPURI  string `mapstructure:"amqp_uri"`
	Exchange string `mapstructure:"exchange"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// JWTSecret enables bearer token auth. Empty falls back to X-User-ID.
	JWTSecret       string        `mapstructure:"jwt_secret"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// RetryConfig configures retries of failed persistence operations.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// FlashcardConfig configures the review schedule.
type FlashcardConfig struct {
	IntervalDays []int `mapstructure:"interval_days"`
}

// GuidanceConfig configures periodic tip checks. Zero disables them.
type GuidanceConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	retry := gateway.DefaultRetryConfig()
	return Config{
		Backend: BackendSQLite,
		Mongo: MongoConfig{
			Database: "prepdeck",
		},
		Events: EventsConfig{
			Exchange: "prepdeck.events",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Retry: RetryConfig{
			MaxAttempts: retry.MaxAttempts,
			InitialWait: retry.InitialWait,
			MaxWait:     retry.MaxWait,
			Multiplier:  retry.Multiplier,
		},
		Flashcard: FlashcardConfig{
			IntervalDays: flashcard.DefaultSchedule().IntervalDays,
		},
		Guidance: GuidanceConfig{
			Interval: 5 * time.Minute,
		},
		TimeZone: "Local",
	}
}

// Loader wraps a viper instance primed with defaults and environment
// bindings. Flags can be bound through Viper before Load.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with every default registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return &Loader{v: v}
}

// Viper exposes the underlying instance, mainly for BindPFlag.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads .env (if present), then the config file at path. An empty path
// searches for prepdeck.{yaml,toml,json} in the working directory and the
// user config directory; a missing file there is not an error.
func (l *Loader) Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("prepdeck")
		l.v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(dir, "prepdeck"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load is shorthand for NewLoader().Load(path).
func Load(path string) (Config, error) {
	return NewLoader().Load(path)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend", d.Backend)
	v.SetDefault("timezone", d.TimeZone)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.postgres_dsn", d.Database.PostgresDSN)

	v.SetDefault("redis.url", d.Redis.URL)

	v.SetDefault("mongo.uri", d.Mongo.URI)
	v.SetDefault("mongo.database", d.Mongo.Database)

	v.SetDefault("events.amqp_uri", d.Events.AMQPURI)
	v.SetDefault("events.exchange", d.Events.Exchange)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.jwt_secret", d.Server.JWTSecret)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_wait", d.Retry.InitialWait)
	v.SetDefault("retry.max_wait", d.Retry.MaxWait)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("flashcard.interval_days", d.Flashcard.IntervalDays)
	v.SetDefault("guidance.interval", d.Guidance.Interval)
}

// Validate checks that the selected backend has what it needs and that
// every value parses.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("PREPDECK_DATABASE_POSTGRES_DSN is required for the postgres backend")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("PREPDECK_REDIS_URL is required for the redis backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("PREPDECK_MONGO_URI is required for the mongo backend")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("PREPDECK_MONGO_DATABASE is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Schedule().Validate(); err != nil {
		return fmt.Errorf("flashcard schedule: %w", err)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Events.AMQPURI != "" && c.Events.Exchange == "" {
		return fmt.Errorf("events.exchange is required when events.amqp_uri is set")
	}
	return nil
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Schedule returns the flashcard schedule.
func (c Config) Schedule() flashcard.Schedule {
	return flashcard.Schedule{IntervalDays: c.Flashcard.IntervalDays}
}

// GatewayRetry converts the retry settings for the gateway decorator.
func (c Config) GatewayRetry() gateway.RetryConfig {
	return gateway.RetryConfig{
		MaxAttempts: c.Retry.MaxAttempts,
		InitialWait: c.Retry.InitialWait,
		MaxWait:     c.Retry.MaxWait,
		Multiplier:  c.Retry.Multiplier,
	}
}
