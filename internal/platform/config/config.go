package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends for signature pools.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full process configuration, read from CIVIC_* variables.
type Config struct {
	Env        string `envconfig:"ENV" default:"development"`
	Server     Server
	Log        Log
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Governance Governance
	Auth       Auth
	RateLimit  RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `envconfig:"ADDR" default:":8080"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type Log struct {
	Format string `envconfig:"FORMAT" default:"text"`
	Level  string `envconfig:"LEVEL" default:"info"`
}

// Postgres is optional; an empty DSN keeps citizens and audit events in memory.
type Postgres struct {
	DSN             string        `envconfig:"DSN"`
	MaxConns        int32         `envconfig:"MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"30m"`
	Migrate         bool          `envconfig:"MIGRATE" default:"true"`
}

// Redis is optional; an empty URL disables the region cache and background
// sealing.
type Redis struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	RegionTTL    time.Duration `envconfig:"REGION_TTL" default:"1h"`
}

// Kafka is optional; without brokers seal announcements are not published.
type Kafka struct {
	Brokers    []string      `envconfig:"BROKERS"`
	ClientID   string        `envconfig:"CLIENT_ID" default:"civictrust"`
	SealTopic  string        `envconfig:"SEAL_TOPIC" default:"civictrust.pools.sealed"`
	Partitions int32         `envconfig:"PARTITIONS" default:"3"`
	Replicas   int16         `envconfig:"REPLICAS" default:"1"`
	Linger     time.Duration `envconfig:"LINGER" default:"5ms"`
}

type Governance struct {
	PoolBackend string `envconfig:"POOL_BACKEND" default:"memory"`
	// QuorumWeight schedules an automatic seal once a pool reaches it. Zero
	// disables automatic sealing.
	QuorumWeight    int `envconfig:"QUORUM_WEIGHT" default:"0"`
	LeafCeiling     int `envconfig:"LEAF_CEILING" default:"100000"`
	MaxSealAttempts int `envconfig:"MAX_SEAL_ATTEMPTS" default:"3"`
	// CountryCodes extends the country table used for region slugs, as
	// "name:code" pairs.
	CountryCodes      map[string]string `envconfig:"COUNTRY_CODES"`
	WorkerConcurrency int               `envconfig:"WORKER_CONCURRENCY" default:"4"`
}

type Auth struct {
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"civictrust"`
	JWTAudience   string `envconfig:"JWT_AUDIENCE" default:"civictrust-api"`
	// AdminTokenHash is the bcrypt hash of the X-Admin-Token value.
	AdminTokenHash string `envconfig:"ADMIN_TOKEN_HASH"`
}

type RateLimit struct {
	WritesPerMinute int `envconfig:"WRITES_PER_MINUTE" default:"60"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("civic", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations the process cannot start with.
func (c *Config) Validate() error {
	switch c.Governance.PoolBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("config: postgres pool backend requires CIVIC_POSTGRES_DSN")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("config: redis pool backend requires CIVIC_REDIS_URL")
		}
	default:
		return fmt.Errorf("config: unknown pool backend %q", c.Governance.PoolBackend)
	}
	if c.Governance.QuorumWeight > 0 {
		if c.Redis.URL == "" {
			return errors.New("config: automatic sealing requires CIVIC_REDIS_URL for the job queue")
		}
		if c.Governance.PoolBackend == BackendMemory {
			return errors.New("config: automatic sealing needs a pool backend shared with the worker")
		}
	}
	if c.Governance.LeafCeiling <= 0 {
		return errors.New("config: leaf ceiling must be positive")
	}
	if c.IsProduction() {
		if c.Auth.AdminTokenHash == "" {
			return errors.New("config: CIVIC_AUTH_ADMIN_TOKEN_HASH is required in production")
		}
		if c.Auth.JWTSigningKey == "dev-secret-key-change-in-production" {
			return errors.New("config: CIVIC_AUTH_JWT_SIGNING_KEY must be set in production")
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}
