package testing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// MustItem is a helper for tests - panics on validation error
func MustItem(id string, leadTimeDays int, safetyStock int64, supplierID string) *entities.Item {
	item, err := entities.NewItem(
		entities.ItemID(id),
		id,
		"EA",
		leadTimeDays,
		decimal.NewFromInt(safetyStock),
		supplierID,
	)
	if err != nil {
		panic(err)
	}
	return item
}

// MustEdge is a helper for tests - panics on validation error
func MustEdge(parentID, componentID string, qtyPer string, leadTimeDays int) *entities.BOMEdge {
	edge, err := entities.NewBOMEdge(
		entities.ItemID(parentID),
		entities.ItemID(componentID),
		decimal.RequireFromString(qtyPer),
		leadTimeDays,
	)
	if err != nil {
		panic(err)
	}
	return edge
}

// MustDemand is a helper for tests - panics on validation error
func MustDemand(itemID string, quantity int64, neededBy time.Time) *entities.DemandRecord {
	demand, err := entities.NewDemandRecord(
		entities.ItemID(itemID),
		decimal.NewFromInt(quantity),
		neededBy,
		entities.SalesOrder,
		"",
	)
	if err != nil {
		panic(err)
	}
	return demand
}

// MustSupply is a helper for tests - panics on validation error
func MustSupply(itemID string, quantity int64, available time.Time, kind entities.SupplyKind) *entities.SupplyRecord {
	supply, err := entities.NewSupplyRecord(
		entities.ItemID(itemID),
		decimal.NewFromInt(quantity),
		available,
		kind,
		"",
	)
	if err != nil {
		panic(err)
	}
	return supply
}

// MustHorizon is a helper for tests - panics on validation error
func MustHorizon(start time.Time, weeks int) entities.Horizon {
	horizon, err := entities.NewHorizon(start, start.AddDate(0, 0, 7*weeks), 7)
	if err != nil {
		panic(err)
	}
	return horizon
}

// Monday is the first day of the horizons used across tests
var Monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

// Week returns the first day of bucket n of a weekly horizon starting on Monday
func Week(n int) time.Time {
	return Monday.AddDate(0, 0, 7*n)
}
