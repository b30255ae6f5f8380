package testing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
)

// Scenario bundles in-memory master data and snapshot stores
type Scenario struct {
	BOM       *memory.BOMRepository
	Items     *memory.ItemRepository
	Snapshots *memory.SnapshotStore
	Horizon   entities.Horizon
}

func newScenario(start, end time.Time, periodDays, expected int) *Scenario {
	horizon, err := entities.NewHorizon(start, end, periodDays)
	if err != nil {
		panic(err)
	}
	return &Scenario{
		BOM:       memory.NewBOMRepository(expected * 2),
		Items:     memory.NewItemRepository(expected),
		Snapshots: memory.NewSnapshotStore(),
		Horizon:   horizon,
	}
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func (s *Scenario) load(
	items []*entities.Item,
	edges []*entities.BOMEdge,
	supply []*entities.SupplyRecord,
	demand []*entities.DemandRecord,
) *Scenario {
	ctx := context.Background()
	// memory stores never fail a load
	_ = s.Items.LoadItems(ctx, items)
	_ = s.BOM.LoadEdges(ctx, edges)
	_ = s.Snapshots.LoadSupply(ctx, supply)
	_ = s.Snapshots.LoadDemand(ctx, demand)
	return s
}

// BuildAerospaceScenario builds a three level launch vehicle BOM with
// weekly buckets from 2025-03-03 to 2025-09-29
func BuildAerospaceScenario() *Scenario {
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	s := newScenario(start, time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC), 7, 8)

	items := []*entities.Item{
		{
			ID:            "SATURN_V",
			Description:   "Saturn V Launch Vehicle",
			UnitOfMeasure: "EA",
			LeadTimeDays:  0,
			SafetyStock:   qty(0),
		},
		{
			ID:                "F1_ENGINE",
			Description:       "F-1 Engine Assembly",
			UnitOfMeasure:     "EA",
			LeadTimeDays:      120,
			SafetyStock:       qty(2),
			DefaultSupplierID: "ROCKETDYNE",
		},
		{
			ID:                "J2_ENGINE",
			Description:       "J-2 Engine",
			UnitOfMeasure:     "EA",
			LeadTimeDays:      90,
			SafetyStock:       qty(0),
			DefaultSupplierID: "ROCKETDYNE",
		},
		{
			ID:                "F1_TURBOPUMP",
			Description:       "F-1 Turbopump Assembly",
			UnitOfMeasure:     "EA",
			LeadTimeDays:      60,
			SafetyStock:       qty(0),
			DefaultSupplierID: "ROCKETDYNE",
		},
		{
			ID:            "INSTRUMENT_UNIT",
			Description:   "Instrument Unit",
			UnitOfMeasure: "EA",
			LeadTimeDays:  30,
			SafetyStock:   qty(0),
		},
		{
			ID:                "RP1_FUEL",
			Description:       "RP-1 Kerosene",
			UnitOfMeasure:     "KG",
			LeadTimeDays:      14,
			SafetyStock:       decimal.RequireFromString("500.0"),
			DefaultSupplierID: "REFINERY_CO",
		},
	}

	edges := []*entities.BOMEdge{
		{ParentID: "SATURN_V", ComponentID: "F1_ENGINE", QuantityPerUnit: qty(5), LeadTimeDays: 120},
		{ParentID: "SATURN_V", ComponentID: "J2_ENGINE", QuantityPerUnit: qty(6), LeadTimeDays: 90},
		{ParentID: "SATURN_V", ComponentID: "INSTRUMENT_UNIT", QuantityPerUnit: qty(1), LeadTimeDays: 30},
		{ParentID: "F1_ENGINE", ComponentID: "F1_TURBOPUMP", QuantityPerUnit: qty(1), LeadTimeDays: 60},
		{ParentID: "F1_ENGINE", ComponentID: "RP1_FUEL", QuantityPerUnit: decimal.RequireFromString("12.5"), LeadTimeDays: 14},
	}

	supply := []*entities.SupplyRecord{
		{ItemID: "F1_ENGINE", Quantity: qty(2), AvailableDate: start, Kind: entities.OnHand, Reference: "LOT-F1-001"},
		{ItemID: "F1_ENGINE", Quantity: qty(1), AvailableDate: start.AddDate(0, 0, 28), Kind: entities.ScheduledReceipt, Reference: "PO-F1-17"},
		{ItemID: "RP1_FUEL", Quantity: qty(800), AvailableDate: start, Kind: entities.OnHand},
	}

	demand := []*entities.DemandRecord{
		{
			ItemID:         "SATURN_V",
			Quantity:       qty(2),
			NeededByDate:   time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			SourceType:     entities.SalesOrder,
			SourceDocument: "SO-APOLLO",
		},
	}

	return s.load(items, edges, supply, demand)
}

// BuildSimpleScenario builds a single parent with one component over four weekly buckets.
// ASSEMBLY_A needs 10 in bucket 2, COMPONENT_A has 5 on hand and a 7 day lead time.
func BuildSimpleScenario() *Scenario {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	s := newScenario(start, start.AddDate(0, 0, 28), 7, 2)

	items := []*entities.Item{
		{ID: "ASSEMBLY_A", Description: "Assembly A", UnitOfMeasure: "EA", SafetyStock: qty(0)},
		{
			ID:                "COMPONENT_A",
			Description:       "Component A",
			UnitOfMeasure:     "EA",
			LeadTimeDays:      7,
			SafetyStock:       qty(0),
			DefaultSupplierID: "SUP-A",
		},
	}

	edges := []*entities.BOMEdge{
		{ParentID: "ASSEMBLY_A", ComponentID: "COMPONENT_A", QuantityPerUnit: qty(2), LeadTimeDays: 7},
	}

	supply := []*entities.SupplyRecord{
		{ItemID: "COMPONENT_A", Quantity: qty(5), AvailableDate: start, Kind: entities.OnHand},
	}

	demand := []*entities.DemandRecord{
		{
			ItemID:       "ASSEMBLY_A",
			Quantity:     qty(10),
			NeededByDate: start.AddDate(0, 0, 14),
			SourceType:   entities.SalesOrder,
		},
	}

	return s.load(items, edges, supply, demand)
}
