package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Defaults come first, then the
// optional YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Server       Server       `yaml:"server"`
	Database     Database     `yaml:"database"`
	Redis        RedisConfig  `yaml:"redis"`
	Kafka        Kafka        `yaml:"kafka"`
	Auth         Auth         `yaml:"auth"`
	Verification Verification `yaml:"verification"`
	Reconcile    Reconcile    `yaml:"reconcile"`
	DomainMatch  DomainMatch  `yaml:"domain_match"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database configures the Postgres pool. An empty URL runs the service on
// in-memory stores.
type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig configures the settings cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	SettingsTTL  time.Duration `yaml:"settings_ttl"`
}

// Kafka configures the audit relay. No brokers disables it.
type Kafka struct {
	Brokers       []string      `yaml:"brokers"`
	AuditTopic    string        `yaml:"audit_topic"`
	RelayInterval time.Duration `yaml:"relay_interval"`
}

type Auth struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`
	AdminToken    string `yaml:"admin_token"`
}

type Verification struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// Reconcile configures the optional in-process expiry sweep. A zero
// interval leaves reconciliation to the admin endpoint.
type Reconcile struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type DomainMatch struct {
	Mode string `yaml:"mode"`
}

const (
	DomainMatchLastTwoLabels = "last_two_labels"
	DomainMatchPublicSuffix  = "publicsuffix"
)

// Default returns the development defaults.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			Environment:     "development",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			TxTimeout:       5 * time.Second,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			SettingsTTL:  30 * time.Second,
		},
		Kafka: Kafka{
			AuditTopic:    "intromarket.audit",
			RelayInterval: 2 * time.Second,
		},
		Auth: Auth{
			JWTSigningKey: "dev-secret-key-change-in-production",
			JWTIssuer:     "intromarket-auth",
			JWTAudience:   "intromarket",
		},
		Verification: Verification{
			ProbeTimeout: 5 * time.Second,
			RetryDelay:   500 * time.Millisecond,
		},
		Reconcile: Reconcile{
			BatchSize: 500,
		},
		DomainMatch: DomainMatch{
			Mode: DomainMatchLastTwoLabels,
		},
	}
}

// Load reads .env (if present), the optional YAML file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("ENVIRONMENT", &c.Server.Environment)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	str("DATABASE_URL", &c.Database.URL)
	num("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	num("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	dur("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime)
	dur("DB_TX_TIMEOUT", &c.Database.TxTimeout)
	flag("DB_AUTO_MIGRATE", &c.Database.AutoMigrate)

	str("REDIS_URL", &c.Redis.URL)
	num("REDIS_POOL_SIZE", &c.Redis.PoolSize)
	dur("SETTINGS_CACHE_TTL", &c.Redis.SettingsTTL)

	if v := strings.TrimSpace(getenv("KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_AUDIT_TOPIC", &c.Kafka.AuditTopic)
	dur("AUDIT_RELAY_INTERVAL", &c.Kafka.RelayInterval)

	str("JWT_SIGNING_KEY", &c.Auth.JWTSigningKey)
	str("JWT_ISSUER", &c.Auth.JWTIssuer)
	str("JWT_AUDIENCE", &c.Auth.JWTAudience)
	str("ADMIN_API_TOKEN", &c.Auth.AdminToken)

	dur("LINKEDIN_PROBE_TIMEOUT", &c.Verification.ProbeTimeout)
	dur("LINKEDIN_RETRY_DELAY", &c.Verification.RetryDelay)

	dur("RECONCILE_INTERVAL", &c.Reconcile.Interval)
	num("RECONCILE_BATCH_SIZE", &c.Reconcile.BatchSize)

	str("DOMAIN_MATCH_MODE", &c.DomainMatch.Mode)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == Default().Auth.JWTSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be overridden in production"))
	}
	if c.IsProduction() && c.Auth.AdminToken == "" {
		errs = append(errs, errors.New("ADMIN_API_TOKEN is required in production"))
	}
	if c.Verification.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("LINKEDIN_PROBE_TIMEOUT must be positive"))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must not be negative"))
	}
	if c.Reconcile.BatchSize <= 0 || c.Reconcile.BatchSize > 1000 {
		errs = append(errs, errors.New("RECONCILE_BATCH_SIZE must be between 1 and 1000"))
	}
	switch c.DomainMatch.Mode {
	case DomainMatchLastTwoLabels, DomainMatchPublicSuffix:
	default:
		errs = append(errs, fmt.Errorf("DOMAIN_MATCH_MODE %q is not supported", c.DomainMatch.Mode))
	}
	if len(c.Kafka.Brokers) > 0 && c.Database.URL == "" {
		errs = append(errs, errors.New("KAFKA_BROKERS requires DATABASE_URL for the audit outbox"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
