package testing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

type MockSnapshotProvider struct {
	mock.Mock
}

func (m *MockSnapshotProvider) DemandedItems(ctx context.Context, horizon entities.Horizon) ([]entities.ItemID, error) {
	args := m.Called(ctx, horizon)
	ids, _ := args.Get(0).([]entities.ItemID)
	return ids, args.Error(1)
}

func (m *MockSnapshotProvider) SupplyAndDemand(
	ctx context.Context,
	itemIDs []entities.ItemID,
	horizon entities.Horizon,
) (*entities.Snapshot, error) {
	args := m.Called(ctx, itemIDs, horizon)
	snapshot, _ := args.Get(0).(*entities.Snapshot)
	return snapshot, args.Error(1)
}

type MockRequisitionSink struct {
	mock.Mock
}

func (m *MockRequisitionSink) Create(ctx context.Context, req entities.PurchaseRequisition) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockBOMResolver struct {
	mock.Mock
}

func (m *MockBOMResolver) ComponentsOf(ctx context.Context, itemID entities.ItemID) ([]entities.BOMEdge, error) {
	args := m.Called(ctx, itemID)
	edges, _ := args.Get(0).([]entities.BOMEdge)
	return edges, args.Error(1)
}

type MockRunLocker struct {
	mock.Mock
}

func (m *MockRunLocker) TryLock(ctx context.Context, runID uuid.UUID) (repositories.Lease, error) {
	args := m.Called(ctx, runID)
	lease, _ := args.Get(0).(repositories.Lease)
	return lease, args.Error(1)
}

type MockLease struct {
	mock.Mock
}

func (m *MockLease) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
