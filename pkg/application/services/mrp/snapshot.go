package mrp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/logger"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 200 * time.Millisecond
)

// RetryingSnapshotProvider retries a slow or flaky provider with exponential
// backoff. Exhausted retries surface as entities.ErrSnapshotUnavailable.
type RetryingSnapshotProvider struct {
	next     repositories.SnapshotProvider
	attempts uint64
	base     time.Duration
}

func NewRetryingSnapshotProvider(next repositories.SnapshotProvider, attempts uint64, base time.Duration) *RetryingSnapshotProvider {
	if attempts == 0 {
		attempts = defaultRetryAttempts
	}
	if base <= 0 {
		base = defaultRetryBase
	}
	return &RetryingSnapshotProvider{next: next, attempts: attempts, base: base}
}

func (p *RetryingSnapshotProvider) DemandedItems(ctx context.Context, horizon entities.Horizon) ([]entities.ItemID, error) {
	var ids []entities.ItemID
	err := p.do(ctx, "DemandedItems", func(ctx context.Context) error {
		var err error
		ids, err = p.next.DemandedItems(ctx, horizon)
		return err
	})
	return ids, err
}

func (p *RetryingSnapshotProvider) SupplyAndDemand(
	ctx context.Context,
	itemIDs []entities.ItemID,
	horizon entities.Horizon,
) (*entities.Snapshot, error) {
	var snapshot *entities.Snapshot
	err := p.do(ctx, "SupplyAndDemand", func(ctx context.Context) error {
		var err error
		snapshot, err = p.next.SupplyAndDemand(ctx, itemIDs, horizon)
		return err
	})
	return snapshot, err
}

func (p *RetryingSnapshotProvider) do(ctx context.Context, call string, fn func(context.Context) error) error {
	log := logger.With(logger.String("call", call))

	attempt := 0
	backoff := retry.WithMaxRetries(p.attempts-1, retry.NewExponential(p.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Warn(ctx, "snapshot provider call failed", logger.Int("attempt", attempt), logger.ErrorF(err))
		return retry.RetryableError(err)
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", entities.ErrSnapshotUnavailable, err)
}
