package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	DB           DBConfig           `yaml:"db"`
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Redis        RedisConfig        `yaml:"redis"`
	MQ           MQConfig           `yaml:"mq"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Reconcile    ReconcileConfig    `yaml:"reconcile"`
	Notify       NotifyConfig       `yaml:"notify"`
	Transport    TransportConfig    `yaml:"transport"`
}

type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	MCPSessionTimeout time.Duration `yaml:"mcp_session_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RedisConfig enables realtime push when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MQConfig enables the AMQP notification and payment publishers when URL is set.
type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type ProvisioningConfig struct {
	Attempts int           `yaml:"attempts"`
	Backoff  time.Duration `yaml:"backoff"`
}

// ReconcileConfig controls the background sweep for active contracts without a workspace.
// A zero interval disables it.
type ReconcileConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type NotifyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
	// MCPActor is the party the stdio MCP transport acts as.
	MCPActor string `yaml:"mcp_actor"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			MCPSessionTimeout: 30 * time.Minute,
		},
		DB: DBConfig{
			Driver: "sqlite",
			Path:   "handshake.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			Enabled:  true,
			TokenTTL: 24 * time.Hour,
		},
		MQ: MQConfig{
			Exchange: "handshake.events",
		},
		Provisioning: ProvisioningConfig{
			Attempts: 3,
			Backoff:  50 * time.Millisecond,
		},
		Reconcile: ReconcileConfig{
			Interval:  time.Minute,
			BatchSize: 100,
		},
		Notify: NotifyConfig{
			Timeout: 5 * time.Second,
		},
		Transport: TransportConfig{
			Mode: "http",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("HANDSHAKE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.Path == "" {
			return errors.New("db.path is required for the sqlite driver")
		}
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("db.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}

	switch c.Transport.Mode {
	case "http":
		if c.Auth.Enabled && c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth is enabled")
		}
	case "stdio":
		if c.Transport.MCPActor == "" {
			return errors.New("transport.mcp_actor is required in stdio mode")
		}
	default:
		return fmt.Errorf("unknown transport.mode %q", c.Transport.Mode)
	}

	if c.Provisioning.Attempts < 1 {
		return errors.New("provisioning.attempts must be at least 1")
	}
	if c.Reconcile.Interval < 0 {
		return errors.New("reconcile.interval must not be negative")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"HANDSHAKE_SERVER_HOST":    &cfg.Server.Host,
		"HANDSHAKE_DB_DRIVER":      &cfg.DB.Driver,
		"HANDSHAKE_DB_PATH":        &cfg.DB.Path,
		"HANDSHAKE_DB_DSN":         &cfg.DB.DSN,
		"HANDSHAKE_LOG_LEVEL":      &cfg.Log.Level,
		"HANDSHAKE_LOG_PATH":       &cfg.Log.Path,
		"HANDSHAKE_JWT_SECRET":     &cfg.Auth.JWTSecret,
		"HANDSHAKE_REDIS_ADDR":     &cfg.Redis.Addr,
		"HANDSHAKE_REDIS_PASSWORD": &cfg.Redis.Password,
		"HANDSHAKE_MQ_URL":         &cfg.MQ.URL,
		"HANDSHAKE_MQ_EXCHANGE":    &cfg.MQ.Exchange,
		"HANDSHAKE_TRANSPORT_MODE": &cfg.Transport.Mode,
		"HANDSHAKE_MCP_ACTOR":      &cfg.Transport.MCPActor,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"HANDSHAKE_SERVER_PORT":           &cfg.Server.Port,
		"HANDSHAKE_REDIS_DB":              &cfg.Redis.DB,
		"HANDSHAKE_PROVISIONING_ATTEMPTS": &cfg.Provisioning.Attempts,
		"HANDSHAKE_RECONCILE_BATCH_SIZE":  &cfg.Reconcile.BatchSize,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"HANDSHAKE_PROVISIONING_BACKOFF": &cfg.Provisioning.Backoff,
		"HANDSHAKE_RECONCILE_INTERVAL":   &cfg.Reconcile.Interval,
		"HANDSHAKE_NOTIFY_TIMEOUT":       &cfg.Notify.Timeout,
		"HANDSHAKE_TOKEN_TTL":            &cfg.Auth.TokenTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("HANDSHAKE_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HANDSHAKE_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = enabled
	}
	return nil
}
