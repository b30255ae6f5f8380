package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func TestSnapshotStore_FiltersByItemAndHorizon(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore()

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	horizon, err := entities.NewHorizon(start, start.AddDate(0, 0, 14), 7)
	if err != nil {
		t.Fatalf("Failed to create horizon: %v", err)
	}

	_ = store.LoadDemand(ctx, []*entities.DemandRecord{
		{ItemID: "B", Quantity: decimal.NewFromInt(5), NeededByDate: start.AddDate(0, 0, 3)},
		{ItemID: "A", Quantity: decimal.NewFromInt(5), NeededByDate: start.AddDate(0, 0, 10)},
		{ItemID: "A", Quantity: decimal.NewFromInt(1), NeededByDate: start.AddDate(0, 0, 2)},
		{ItemID: "LATE", Quantity: decimal.NewFromInt(5), NeededByDate: start.AddDate(0, 0, 30)},
	})
	_ = store.LoadSupply(ctx, []*entities.SupplyRecord{
		{ItemID: "A", Quantity: decimal.NewFromInt(3), AvailableDate: start, Kind: entities.OnHand},
		{ItemID: "C", Quantity: decimal.NewFromInt(3), AvailableDate: start, Kind: entities.OnHand},
	})

	ids, err := store.DemandedItems(ctx, horizon)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "A" || ids[1] != "B" {
		t.Fatalf("Expected [A B], got %v", ids)
	}

	snapshot, err := store.SupplyAndDemand(ctx, []entities.ItemID{"A"}, horizon)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(snapshot.Demand) != 2 {
		t.Errorf("Expected 2 demand records for A, got %d", len(snapshot.Demand))
	}
	if len(snapshot.Supply) != 1 {
		t.Errorf("Expected 1 supply record for A, got %d", len(snapshot.Supply))
	}
}
