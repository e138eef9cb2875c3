// Package config loads the loader's configuration from the environment.
//
// Variables are read from the process environment, optionally seeded from a
// `.env` file in the working directory. Database settings use the PG_ prefix
// (PG_USER, PG_PASSWORD, PG_DB, PG_HOST, PG_PORT, PG_SSLMODE); everything
// else uses SWAPI_ (SWAPI_CHUNK_SIZE -> ChunkSize). Unset variables keep the
// defaults from Default.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/swapi-loader/pkg/client"
	"github.com/Sternrassler/swapi-loader/pkg/logging"
	"github.com/Sternrassler/swapi-loader/pkg/people"
	"github.com/Sternrassler/swapi-loader/pkg/pipeline"
	"github.com/Sternrassler/swapi-loader/pkg/store"
	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before Load reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	dbPrefix  = "PG_"
	appPrefix = "SWAPI_"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// pgKeys maps PG_* suffixes onto DatabaseConfig keys.
var pgKeys = map[string]string{
	"USER":     "user",
	"PASSWORD": "password",
	"DB":       "name",
	"HOST":     "host",
	"PORT":     "port",
	"SSLMODE":  "sslmode",
}

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `koanf:"db" validate:"required"`

	BaseURL      string        `koanf:"base_url" validate:"required,url"`
	UserAgent    string        `koanf:"user_agent" validate:"required"`
	HTTPTimeout  time.Duration `koanf:"http_timeout"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	ChunkSize       int    `koanf:"chunk_size" validate:"min=1"`
	TotalCount      int    `koanf:"total_count" validate:"min=0"`
	StorageMode     string `koanf:"storage_mode" validate:"oneof=json columns"`
	ResolveMode     string `koanf:"resolve_mode" validate:"oneof=sequential concurrent"`
	Pipelined       bool   `koanf:"pipelined"`
	InsertBatchSize int    `koanf:"insert_batch_size" validate:"min=1"`

	DBDriver   string `koanf:"db_driver" validate:"oneof=postgres sqlite"`
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=DBDriver sqlite"`

	LogLevel    string `koanf:"log_level" validate:"required"`
	LogPretty   bool   `koanf:"log_pretty"`
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
}

// DatabaseConfig holds the PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `koanf:"host" validate:"required"`
	Port     int    `koanf:"port" validate:"required,min=1,max=65535"`
	User     string `koanf:"user" validate:"required"`
	Password string `koanf:"password"`
	Name     string `koanf:"name" validate:"required"`
	SSLMode  string `koanf:"sslmode" validate:"required"`
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	api := client.DefaultConfig()

	return Config{
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5431,
			User:     "user",
			Password: "123",
			Name:     "asy",
			SSLMode:  "disable",
		},
		BaseURL:         api.BaseURL,
		UserAgent:       api.UserAgent,
		HTTPTimeout:     api.Timeout,
		ChunkSize:       pipeline.DefaultConfig().ChunkSize,
		StorageMode:     string(store.ModeJSON),
		ResolveMode:     string(people.ResolveSequential),
		InsertBatchSize: 100,
		DBDriver:        DriverPostgres,
		SQLitePath:      "swapi.db",
		LogLevel:        string(logging.LevelInfo),
	}
}

// Load reads the environment over Default and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(dbPrefix, ".", func(s string) string {
		key, ok := pgKeys[strings.TrimPrefix(s, dbPrefix)]
		if !ok {
			return ""
		}
		return "db." + key
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load %s variables: %w", dbPrefix, err)
	}

	err = k.Load(env.Provider(appPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, appPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load %s variables: %w", appPrefix, err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if !logging.LogLevel(c.LogLevel).Valid() {
		return fmt.Errorf("config validation failed: unknown log level %q", c.LogLevel)
	}
	return nil
}

// Postgres returns the store connection parameters.
func (c *Config) Postgres() store.PostgresConfig {
	return store.PostgresConfig{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		SSLMode:  c.Database.SSLMode,
	}
}

// StoreOptions returns the driver-independent store options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Mode:            store.Mode(c.StorageMode),
		InsertBatchSize: c.InsertBatchSize,
		SlowThreshold:   time.Second,
	}
}

// Client returns the API client configuration.
func (c *Config) Client() client.Config {
	return client.Config{
		BaseURL:   c.BaseURL,
		UserAgent: c.UserAgent,
		Timeout:   c.HTTPTimeout,
	}
}

// Pipeline returns the run shape.
func (c *Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		ChunkSize:    c.ChunkSize,
		TotalCount:   c.TotalCount,
		Pipelined:    c.Pipelined,
		FetchTimeout: c.FetchTimeout,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.LogLevel),
		Pretty: c.LogPretty,
	}
}
