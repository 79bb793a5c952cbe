package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"ghcn-daily/internal/models"
	"ghcn-daily/pkg/database"
)

// EnvPrefix prefixes every environment variable, e.g. GHCN_SERVER_PORT or
// GHCN_DATABASE_SSL_MODE
const EnvPrefix = "GHCN"

// FileEnv names the variable holding an optional YAML config path
const FileEnv = "GHCN_CONFIG_FILE"

// Config is the configuration shared by every command
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true" default:"0.0.0.0"`
	Port            int           `yaml:"port" split_words:"true" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" default:"30s"`
	PageSize        int           `yaml:"page_size" split_words:"true" default:"50" validate:"min=1,max=1000"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver" split_words:"true" default:"postgres" validate:"oneof=postgres pgx sqlite"`
	DSN             string        `yaml:"dsn" split_words:"true" validate:"required_if=Driver sqlite"`
	Host            string        `yaml:"host" split_words:"true" default:"localhost"`
	Port            int           `yaml:"port" split_words:"true" default:"5432" validate:"min=1,max=65535"`
	User            string        `yaml:"user" split_words:"true" default:"ghcn"`
	Password        string        `yaml:"password" split_words:"true"`
	Name            string        `yaml:"name" split_words:"true" default:"ghcn"`
	SSLMode         string        `yaml:"ssl_mode" split_words:"true" default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" split_words:"true" default:"25" validate:"min=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" split_words:"true" default:"5" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" split_words:"true" default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" split_words:"true" default:"1m"`
	PoolInterval    time.Duration `yaml:"pool_interval" split_words:"true" default:"10s"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" split_words:"true" default:"info" validate:"oneof=debug info warn warning error fatal"`
	Version string `yaml:"version" split_words:"true" default:"1.0.0"`
}

// IngestConfig drives cmd/ingester. Zero years leave the range open.
type IngestConfig struct {
	DataDir       string `yaml:"data_dir" split_words:"true" default:"data" validate:"required"`
	Pattern       string `yaml:"pattern" split_words:"true" default:"*.dly" validate:"required"`
	Workers       int    `yaml:"workers" split_words:"true" default:"4" validate:"min=1,max=64"`
	BatchSize     int    `yaml:"batch_size" split_words:"true" default:"1000" validate:"min=1"`
	StartYear     int    `yaml:"start_year" split_words:"true" validate:"min=0"`
	EndYear       int    `yaml:"end_year" split_words:"true" validate:"min=0"`
	SkipMalformed bool   `yaml:"skip_malformed" split_words:"true" default:"true"`
}

// KafkaConfig configures the optional row publisher
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled" split_words:"true" default:"false"`
	Brokers      []string      `yaml:"brokers" split_words:"true" default:"localhost:9092" validate:"required_if=Enabled true"`
	Topic        string        `yaml:"topic" split_words:"true" default:"ghcn.daily.observations" validate:"required_if=Enabled true"`
	BatchSize    int           `yaml:"batch_size" split_words:"true" default:"500" validate:"min=1"`
	BatchTimeout time.Duration `yaml:"batch_timeout" split_words:"true" default:"1s"`
}

// LoadConfig reads defaults and environment variables, overlays the YAML
// file named by GHCN_CONFIG_FILE if set, then validates the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// overlayFile replaces every key present in the YAML file
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	in := c.Ingest
	if in.StartYear > 0 && in.EndYear > 0 && in.EndYear < in.StartYear {
		return &models.ValidationError{
			Field:   "ingest.end_year",
			Value:   strconv.Itoa(in.EndYear),
			Message: "end_year cannot be less than start_year",
		}
	}
	return nil
}

// YearRange returns the ingest bounds, nil where open
func (c IngestConfig) YearRange() (start, end *int) {
	if c.StartYear > 0 {
		s := c.StartYear
		start = &s
	}
	if c.EndYear > 0 {
		e := c.EndYear
		end = &e
	}
	return start, end
}

// DatabaseOptions converts to the pkg/database connection settings
func (c DatabaseConfig) DatabaseOptions() *database.Config {
	return &database.Config{
		Driver:          c.Driver,
		DSN:             c.DSN,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Name,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PoolInterval:    c.PoolInterval,
	}
}
