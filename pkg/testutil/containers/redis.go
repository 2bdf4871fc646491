//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"intromarket/internal/platform/config"
	platformredis "intromarket/internal/platform/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is a throwaway Redis reached through the same client
// constructor the server uses for the settings cache.
type RedisContainer struct {
	Container *tcredis.RedisContainer
	URL       string
	Client    *platformredis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	require.NoError(t, err, "start redis container")

	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		require.NoError(t, err, "redis connection string")
	}

	client, err := platformredis.New(ctx, config.RedisConfig{URL: url, DialTimeout: 5 * time.Second})
	if err != nil {
		_ = container.Terminate(ctx)
		require.NoError(t, err, "connect to redis")
	}

	return &RedisContainer{Container: container, URL: url, Client: client}
}

// Reset drops the cached settings snapshot and its generation counter.
func (r *RedisContainer) Reset(ctx context.Context) error {
	return r.Client.FlushDB(ctx).Err()
}
