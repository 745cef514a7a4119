//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"civictrust/internal/platform/config"
	platformredis "civictrust/internal/platform/redis"
)

// RedisContainer backs the Redis pool store, the region cache and the seal
// queue. Client is built by the same constructor the server uses.
type RedisContainer struct {
	Container testcontainers.Container
	Config    config.Redis
	Client    *platformredis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get redis url: %v", err)
	}

	cfg := config.Redis{URL: url, PoolSize: 20}
	client, err := platformredis.New(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to redis: %v", err)
	}
	return &RedisContainer{Container: container, Config: cfg, Client: client}
}

// Reset empties the database between tests; the container is shared.
func (r *RedisContainer) Reset(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}
