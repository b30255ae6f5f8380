package mrp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	svctest "github.com/vsinha/mrp-planner/pkg/application/services/testing"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func TestRetryingSnapshotProvider_RecoversFromTransientErrors(t *testing.T) {
	horizon := svctest.MustHorizon(svctest.Monday, 4)
	next := &svctest.MockSnapshotProvider{}
	next.On("DemandedItems", mock.Anything, horizon).Return(nil, errors.New("timeout")).Twice()
	next.On("DemandedItems", mock.Anything, horizon).Return([]entities.ItemID{"A"}, nil).Once()

	ids, err := NewRetryingSnapshotProvider(next, 3, time.Millisecond).DemandedItems(context.Background(), horizon)
	require.NoError(t, err)
	assert.Equal(t, []entities.ItemID{"A"}, ids)
	next.AssertNumberOfCalls(t, "DemandedItems", 3)
}

func TestRetryingSnapshotProvider_GivesUp(t *testing.T) {
	horizon := svctest.MustHorizon(svctest.Monday, 4)
	next := &svctest.MockSnapshotProvider{}
	next.On("SupplyAndDemand", mock.Anything, mock.Anything, horizon).Return(nil, errors.New("connection refused"))

	_, err := NewRetryingSnapshotProvider(next, 2, time.Millisecond).
		SupplyAndDemand(context.Background(), []entities.ItemID{"A"}, horizon)
	assert.ErrorIs(t, err, entities.ErrSnapshotUnavailable)
	assert.ErrorContains(t, err, "connection refused")
	next.AssertNumberOfCalls(t, "SupplyAndDemand", 2)
}

func TestRetryingSnapshotProvider_StopsOnCancelledContext(t *testing.T) {
	horizon := svctest.MustHorizon(svctest.Monday, 4)
	next := &svctest.MockSnapshotProvider{}
	next.On("DemandedItems", mock.Anything, horizon).Return(nil, context.Canceled).Maybe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRetryingSnapshotProvider(next, 5, time.Millisecond).DemandedItems(ctx, horizon)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, entities.ErrSnapshotUnavailable)
}
