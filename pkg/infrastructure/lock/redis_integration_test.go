//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func startRedis(t *testing.T) *goredis.Client {
	t.Helper()
	ctx := context.Background()

	redisC, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7.4-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tc.TerminateContainer(redisC) })

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        endpoint,
		DialTimeout: 5 * time.Second,
	})
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisLocker_Lease(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)
	locker := NewRedisLocker(rdb, 600*time.Millisecond)
	runID := uuid.New()

	lease, err := locker.TryLock(ctx, runID)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, runID)
	assert.ErrorIs(t, err, entities.ErrRunBusy)

	// outlive the TTL; keepAlive must hold the lease
	time.Sleep(1500 * time.Millisecond)
	_, err = locker.TryLock(ctx, runID)
	assert.ErrorIs(t, err, entities.ErrRunBusy)

	require.NoError(t, lease.Release(ctx))

	again, err := locker.TryLock(ctx, runID)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLocker_ReleaseAfterTakeoverReportsLost(t *testing.T) {
	ctx := context.Background()
	rdb := startRedis(t)
	locker := NewRedisLocker(rdb, time.Minute)
	runID := uuid.New()

	lease, err := locker.TryLock(ctx, runID)
	require.NoError(t, err)

	require.NoError(t, rdb.Set(ctx, redisKey(runID), "someone-else", time.Minute).Err())

	assert.ErrorIs(t, lease.Release(ctx), ErrLeaseLost)
	assert.Equal(t, "someone-else", rdb.Get(ctx, redisKey(runID)).Val())
}
