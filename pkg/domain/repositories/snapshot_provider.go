package repositories

import (
	"context"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// SnapshotProvider reads supply and demand for a run.
// The caller fetches once per run and treats the result as immutable.
type SnapshotProvider interface {
	// DemandedItems lists items with independent demand dated before horizon.End, sorted.
	DemandedItems(ctx context.Context, horizon entities.Horizon) ([]entities.ItemID, error)
	// SupplyAndDemand returns supply available before horizon.End and demand needed before it.
	SupplyAndDemand(ctx context.Context, itemIDs []entities.ItemID, horizon entities.Horizon) (*entities.Snapshot, error)
}

// SnapshotLoader is implemented by stores that accept supply and demand imports
type SnapshotLoader interface {
	LoadSupply(ctx context.Context, records []*entities.SupplyRecord) error
	LoadDemand(ctx context.Context, records []*entities.DemandRecord) error
}
