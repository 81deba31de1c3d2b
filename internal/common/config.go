package common

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. INVOICEDESK_SERVICE_BASE_URL.
const EnvPrefix = "INVOICEDESK"

// Config holds all application configuration
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Log      LogConfig
}

// ServiceConfig points at the invoice extraction service
type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Addr           string
	GRPCAddr       string
	HealthInterval time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// IngestConfig drives batch uploads and folder watching
type IngestConfig struct {
	Workers        int
	QueueSize      int
	Debounce       time.Duration
	ProcessTimeout time.Duration
	OutDir         string
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.base_url", "http://127.0.0.1:5000")
	v.SetDefault("service.timeout", 3*time.Minute)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.grpc_addr", ":8081")
	v.SetDefault("server.health_interval", 30*time.Second)

	v.SetDefault("database.dsn", "invoicedesk.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.queue_size", 256)
	v.SetDefault("ingest.debounce", 500*time.Millisecond)
	v.SetDefault("ingest.process_timeout", 3*time.Minute)
	v.SetDefault("ingest.out_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads configuration from defaults, an optional config file, a .env file
// in the working directory and INVOICEDESK_* environment variables, in increasing
// order of precedence. Flags bound to v by the caller win over all of them.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "load .env", err)
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", configFile), err)
		}
	}

	return &Config{
		Service: ServiceConfig{
			BaseURL: strings.TrimRight(v.GetString("service.base_url"), "/"),
			Timeout: v.GetDuration("service.timeout"),
		},
		Server: ServerConfig{
			Addr:           v.GetString("server.addr"),
			GRPCAddr:       v.GetString("server.grpc_addr"),
			HealthInterval: v.GetDuration("server.health_interval"),
		},
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Ingest: IngestConfig{
			Workers:        v.GetInt("ingest.workers"),
			QueueSize:      v.GetInt("ingest.queue_size"),
			Debounce:       v.GetDuration("ingest.debounce"),
			ProcessTimeout: v.GetDuration("ingest.process_timeout"),
			OutDir:         v.GetString("ingest.out_dir"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "service.base_url is required", ErrInvalidInput)
	}
	if u, err := url.ParseRequestURI(c.Service.BaseURL); err != nil || u.Host == "" {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("service.base_url %q is not an absolute URL", c.Service.BaseURL), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "database.dsn is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "server.addr is required", ErrInvalidInput)
	}
	if c.Ingest.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "ingest.workers must be positive", ErrInvalidInput)
	}
	return nil
}
