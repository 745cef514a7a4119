package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, BackendMemory, cfg.Governance.PoolBackend)
	assert.Equal(t, 3, cfg.Governance.MaxSealAttempts)
	assert.Equal(t, "civictrust.pools.sealed", cfg.Kafka.SealTopic)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CIVIC_SERVER_ADDR", ":9090")
	t.Setenv("CIVIC_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CIVIC_GOVERNANCE_POOL_BACKEND", "redis")
	t.Setenv("CIVIC_GOVERNANCE_QUORUM_WEIGHT", "500")
	t.Setenv("CIVIC_GOVERNANCE_COUNTRY_CODES", "Nederland:nl,Italia:it")
	t.Setenv("CIVIC_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, BackendRedis, cfg.Governance.PoolBackend)
	assert.Equal(t, 500, cfg.Governance.QuorumWeight)
	assert.Equal(t, map[string]string{"Nederland": "nl", "Italia": "it"}, cfg.Governance.CountryCodes)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Governance: Governance{PoolBackend: BackendMemory, LeafCeiling: 10},
			Auth:       Auth{JWTSigningKey: "k"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "memory backend", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Governance.PoolBackend = BackendPostgres }, wantErr: "CIVIC_POSTGRES_DSN"},
		{name: "redis without url", mutate: func(c *Config) { c.Governance.PoolBackend = BackendRedis }, wantErr: "CIVIC_REDIS_URL"},
		{name: "unknown backend", mutate: func(c *Config) { c.Governance.PoolBackend = "etcd" }, wantErr: "unknown pool backend"},
		{name: "quorum without queue", mutate: func(c *Config) { c.Governance.QuorumWeight = 10 }, wantErr: "job queue"},
		{name: "quorum on memory pools", mutate: func(c *Config) {
			c.Governance.QuorumWeight = 10
			c.Redis.URL = "redis://localhost:6379"
		}, wantErr: "shared with the worker"},
		{name: "zero leaf ceiling", mutate: func(c *Config) { c.Governance.LeafCeiling = 0 }, wantErr: "leaf ceiling"},
		{name: "production without admin hash", mutate: func(c *Config) { c.Env = "production" }, wantErr: "ADMIN_TOKEN_HASH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
