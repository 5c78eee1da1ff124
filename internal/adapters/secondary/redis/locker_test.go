package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scan-prediction-service/internal/config"
)

func TestNewLocker_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewLocker(ctx, &config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping")
}

func TestTryLock_ConnectionError(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	l := NewLockerFromClient(rdb)
	t.Cleanup(func() { _ = l.Close() })

	acquired, release, err := l.TryLock(context.Background(), "scan-prediction:test", time.Second)
	require.Error(t, err)
	assert.False(t, acquired)
	assert.Nil(t, release)
}
