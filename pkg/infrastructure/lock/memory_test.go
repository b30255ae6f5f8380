package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func TestMemoryLocker_BusyUntilReleased(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	runID := uuid.New()

	lease, err := locker.TryLock(ctx, runID)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, runID)
	assert.ErrorIs(t, err, entities.ErrRunBusy)

	other, err := locker.TryLock(ctx, uuid.New())
	require.NoError(t, err, "other runs are not blocked")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx), "release is idempotent")

	again, err := locker.TryLock(ctx, runID)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker_OneWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	runID := uuid.New()

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := locker.TryLock(ctx, runID); err == nil {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
}

func TestAdvisoryKey64_Stable(t *testing.T) {
	id := uuid.MustParse("6f1c2a8e-4b7d-4e3a-9a55-0c2f3b1d9e10")
	assert.Equal(t, advisoryKey64(id), advisoryKey64(id))
	assert.NotEqual(t, advisoryKey64(id), advisoryKey64(uuid.New()))
	assert.Equal(t, "mrp_run:6f1c2a8e-4b7d-4e3a-9a55-0c2f3b1d9e10:lock", redisKey(id))
}
