package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// PostgresLocker takes a session advisory lock on a dedicated pooled
// connection. The lock lives as long as the connection, so a crashed
// instance never leaves a run locked.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

var _ repositories.RunLocker = (*PostgresLocker)(nil)

func (l *PostgresLocker) TryLock(ctx context.Context, runID uuid.UUID) (repositories.Lease, error) {
	const op = "lock.postgres.TryLock"

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire conn: %w", op, err)
	}

	key := advisoryKey64(runID)
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !locked {
		conn.Release()
		return nil, fmt.Errorf("%s: %w", op, entities.ErrRunBusy)
	}

	return &postgresLease{conn: conn, key: key}, nil
}

type postgresLease struct {
	conn *pgxpool.Conn
	key  int64
	once sync.Once
}

func (p *postgresLease) Release(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		var unlocked bool
		err = p.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, p.key).Scan(&unlocked)
		if err == nil && !unlocked {
			err = fmt.Errorf("advisory lock %d was not held", p.key)
		}
		if err != nil {
			// a session lock dies with its connection
			_ = p.conn.Conn().Close(ctx)
		}
		p.conn.Release()
	})
	return err
}
