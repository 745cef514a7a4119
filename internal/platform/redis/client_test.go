package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civictrust/internal/platform/config"
)

func TestNewDisabledWithoutURL(t *testing.T) {
	client, err := New(context.Background(), config.Redis{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), config.Redis{URL: "redis://" + mr.Addr() + "/2", PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(context.Background()))
	opt := client.AsynqOpt()
	assert.Equal(t, mr.Addr(), opt.Addr)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 4, opt.PoolSize)
}

func TestNewFailsOnBadURL(t *testing.T) {
	_, err := New(context.Background(), config.Redis{URL: "://nope"})
	require.Error(t, err)
}
