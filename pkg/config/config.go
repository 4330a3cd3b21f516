package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MESA_DATABASE_HOST.
const EnvPrefix = "MESA_"

type Config struct {
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq" envPrefix:"RABBITMQ_"`
	Storage  StorageConfig  `yaml:"storage" envPrefix:"STORAGE_"`
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Sessions SessionsConfig `yaml:"sessions" envPrefix:"SESSIONS_"`
	Verifier VerifierConfig `yaml:"verifier" envPrefix:"VERIFIER_"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	MaxConns int32  `yaml:"max_conns" env:"MAX_CONNS"`
}

// DSN renders the connection string understood by both pgx and lib/pq.
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	VHost    string `yaml:"vhost" env:"VHOST"`
}

func (c RabbitMQConfig) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.VHost,
	}
	return u.String()
}

// StorageConfig selects the repository. SeedTables only applies to the
// memory driver, which otherwise starts empty.
type StorageConfig struct {
	Driver     string `yaml:"driver" env:"DRIVER"`
	SeedTenant int64  `yaml:"seed_tenant" env:"SEED_TENANT"`
	SeedTables int    `yaml:"seed_tables" env:"SEED_TABLES"`
}

type ServerConfig struct {
	Port int `yaml:"port" env:"PORT"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

type SessionsConfig struct {
	OrderTTL         time.Duration `yaml:"order_ttl" env:"ORDER_TTL"`
	ReservationGrace time.Duration `yaml:"reservation_grace" env:"RESERVATION_GRACE"`
	ServeGrace       time.Duration `yaml:"serve_grace" env:"SERVE_GRACE"`
}

type VerifierConfig struct {
	Interval    time.Duration `yaml:"interval" env:"INTERVAL"`
	Suppression time.Duration `yaml:"suppression" env:"SUPPRESSION"`
	Retention   time.Duration `yaml:"retention" env:"RETENTION"`
	KanbanAfter time.Duration `yaml:"kanban_after" env:"KANBAN_AFTER"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "mesa",
			Password: "mesa",
			Database: "mesa_qr",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     5672,
			User:     "guest",
			Password: "guest",
		},
		Storage:  StorageConfig{Driver: "postgres", SeedTenant: 1},
		Server:   ServerConfig{Port: 3000},
		Log:      LogConfig{Level: "info"},
		Sessions: SessionsConfig{
			OrderTTL:         2 * time.Hour,
			ReservationGrace: 10 * time.Minute,
			ServeGrace:       30 * time.Minute,
		},
		Verifier: VerifierConfig{
			Interval:    30 * time.Second,
			Suppression: 5 * time.Minute,
			Retention:   30 * time.Minute,
			KanbanAfter: 30 * time.Minute,
		},
	}
}

// LoadConfig layers defaults, the YAML file at path and MESA_ environment
// variables, in that order. A missing YAML or .env file is not an error.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be one of: postgres, memory (got %q)", c.Storage.Driver)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Verifier.Interval <= 0 {
		return errors.New("verifier.interval must be positive")
	}
	if c.Verifier.Suppression <= 0 {
		return errors.New("verifier.suppression must be positive")
	}
	if c.Verifier.Retention < c.Verifier.Suppression {
		return errors.New("verifier.retention must not be shorter than verifier.suppression")
	}
	if c.Sessions.OrderTTL <= 0 || c.Sessions.ServeGrace <= 0 {
		return errors.New("sessions.order_ttl and sessions.serve_grace must be positive")
	}
	if c.Sessions.ReservationGrace < 0 {
		return errors.New("sessions.reservation_grace must not be negative")
	}
	return nil
}
