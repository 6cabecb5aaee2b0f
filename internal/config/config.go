package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/blertbank/backend/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Auth           AuthConfig
	Ledger         LedgerConfig
	Reconciliation ReconciliationConfig
}

type ServerConfig struct {
	Port            string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	PublicHost      string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// KafkaConfig enables event publishing when Brokers is non-empty
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	ServiceToken string
	JWTSecret    string
}

// LedgerConfig holds posting settings. SystemAccounts lists the system
// accounts to seed as "name:kind" pairs.
type LedgerConfig struct {
	NegativeBalanceKinds []string
	SystemAccounts       []string
	LockTimeout          time.Duration
	IdempotencyCacheTTL  time.Duration
}

// BalancePolicy builds the policy from the configured account kinds
func (c LedgerConfig) BalancePolicy() (models.BalancePolicy, error) {
	kinds := make([]models.AccountKind, 0, len(c.NegativeBalanceKinds))
	for _, name := range c.NegativeBalanceKinds {
		kind, err := models.ParseAccountKind(name)
		if err != nil {
			return models.BalancePolicy{}, fmt.Errorf("ledger.negative_balance_kinds: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return models.NewBalancePolicy(kinds...), nil
}

// SystemAccountKinds parses the configured system accounts
func (c LedgerConfig) SystemAccountKinds() (map[string]models.AccountKind, error) {
	accounts := make(map[string]models.AccountKind, len(c.SystemAccounts))
	for _, pair := range c.SystemAccounts {
		name, kindName, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("ledger.system_accounts: expected name:kind, got %q", pair)
		}
		kind, err := models.ParseAccountKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("ledger.system_accounts: %w", err)
		}
		if kind == models.AccountKindUser {
			return nil, fmt.Errorf("ledger.system_accounts: %q cannot be a user account", name)
		}
		accounts[name] = kind
	}
	return accounts, nil
}

type ReconciliationConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

var envBindings = map[string]string{
	"server.port":             "PORT",
	"server.log_level":        "LOG_LEVEL",
	"server.request_timeout":  "SERVER_REQUEST_TIMEOUT",
	"server.shutdown_timeout": "SERVER_SHUTDOWN_TIMEOUT",
	"server.allowed_origins":  "SERVER_ALLOWED_ORIGINS",
	"server.public_host":      "SERVER_PUBLIC_HOST",

	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
	"database.migrate":           "DATABASE_MIGRATE",

	"redis.enabled":  "REDIS_ENABLED",
	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"kafka.brokers": "KAFKA_BROKERS",
	"kafka.topic":   "KAFKA_TOPIC",

	"auth.service_token": "SERVICE_TOKEN",
	"auth.jwt_secret":    "JWT_SECRET_KEY",

	"ledger.negative_balance_kinds": "LEDGER_NEGATIVE_BALANCE_KINDS",
	"ledger.system_accounts":        "LEDGER_SYSTEM_ACCOUNTS",
	"ledger.lock_timeout":           "LEDGER_LOCK_TIMEOUT",
	"ledger.idempotency_cache_ttl":  "LEDGER_IDEMPOTENCY_CACHE_TTL",

	"reconciliation.enabled":  "RECONCILIATION_ENABLED",
	"reconciliation.schedule": "RECONCILIATION_SCHEDULE",
	"reconciliation.timeout":  "RECONCILIATION_TIMEOUT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", "https://*,http://*")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "ledger")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "ledger.transaction_posted")

	v.SetDefault("ledger.negative_balance_kinds", "treasury,liability")
	v.SetDefault("ledger.system_accounts", "treasury:treasury,fees:sink")
	v.SetDefault("ledger.lock_timeout", 5*time.Second)
	v.SetDefault("ledger.idempotency_cache_ttl", 24*time.Hour)

	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.schedule", "@every 15m")
	v.SetDefault("reconciliation.timeout", 2*time.Minute)
}

// Load reads configuration from the optional file at path (typically .env)
// with environment variables taking precedence
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
		applyFileValues(v)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			LogLevel:        v.GetString("server.log_level"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
			PublicHost:      v.GetString("server.public_host"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			Migrate:         v.GetBool("database.migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Auth: AuthConfig{
			ServiceToken: v.GetString("auth.service_token"),
			JWTSecret:    v.GetString("auth.jwt_secret"),
		},
		Ledger: LedgerConfig{
			NegativeBalanceKinds: splitList(v.GetString("ledger.negative_balance_kinds")),
			SystemAccounts:       splitList(v.GetString("ledger.system_accounts")),
			LockTimeout:          v.GetDuration("ledger.lock_timeout"),
			IdempotencyCacheTTL:  v.GetDuration("ledger.idempotency_cache_ttl"),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:  v.GetBool("reconciliation.enabled"),
			Schedule: v.GetString("reconciliation.schedule"),
			Timeout:  v.GetDuration("reconciliation.timeout"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFileValues maps variables read from an env file onto their config
// keys. They land as defaults so real environment variables still win.
func applyFileValues(v *viper.Viper) {
	for key, env := range envBindings {
		fileKey := strings.ToLower(env)
		if v.InConfig(fileKey) {
			v.SetDefault(key, v.Get(fileKey))
		}
	}
}

func (c *Config) validate() error {
	if c.Auth.ServiceToken == "" && c.Auth.JWTSecret == "" {
		return errors.New("one of SERVICE_TOKEN or JWT_SECRET_KEY must be set")
	}
	if c.Ledger.LockTimeout < 0 {
		return errors.New("ledger.lock_timeout must not be negative")
	}
	if _, err := c.Ledger.BalancePolicy(); err != nil {
		return err
	}
	if _, err := c.Ledger.SystemAccountKinds(); err != nil {
		return err
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
