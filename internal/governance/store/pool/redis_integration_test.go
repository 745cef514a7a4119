//go:build integration

package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"civictrust/pkg/testutil/containers"
)

// The Lua scripts run on a real server here; miniredis covers the unit path.
func TestRedisPoolStoreOnRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &PoolStoreSuite{newStore: func(t *testing.T) poolStore {
		if err := rc.Reset(context.Background()); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return NewRedis(rc.Client.Client)
	}})
}
