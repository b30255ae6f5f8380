package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// ErrLeaseLost is returned on release when the lease expired and another holder took it
var ErrLeaseLost = errors.New("run lease lost")

// RedisLocker grants a run lease with SET NX PX. The lease is refreshed
// while held and only the token holder can release it.
type RedisLocker struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *goredis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

var _ repositories.RunLocker = (*RedisLocker)(nil)

func (l *RedisLocker) TryLock(ctx context.Context, runID uuid.UUID) (repositories.Lease, error) {
	const op = "lock.redis.TryLock"

	key := redisKey(runID)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entities.ErrRunBusy)
	}

	lease := &redisLease{
		rdb:   l.rdb,
		key:   key,
		token: token,
		ttl:   l.ttl,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

type redisLease struct {
	rdb   *goredis.Client
	key   string
	token string
	ttl   time.Duration
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (r *redisLease) keepAlive() {
	defer close(r.done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.ttl/3)
			n, err := refreshScript.Run(ctx, r.rdb, []string{r.key}, r.token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				logger.Warn(context.Background(), "refresh run lease", logger.String("key", r.key), logger.ErrorF(err))
				continue
			}
			if n == 0 {
				logger.Error(context.Background(), "run lease lost", logger.String("key", r.key))
				return
			}
		}
	}
}

func (r *redisLease) Release(ctx context.Context) error {
	var err error
	r.once.Do(func() {
		close(r.stop)
		<-r.done

		var n int64
		n, err = releaseScript.Run(ctx, r.rdb, []string{r.key}, r.token).Int64()
		if err == nil && n == 0 {
			err = ErrLeaseLost
		}
	})
	return err
}
