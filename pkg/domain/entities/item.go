package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemID is the opaque identifier of a stock-keeping item
type ItemID string

// Item represents item master data used by planning
type Item struct {
	ID                ItemID
	Description       string
	UnitOfMeasure     string
	LeadTimeDays      int
	SafetyStock       decimal.Decimal
	DefaultSupplierID string
}

// NewItem creates a validated Item
func NewItem(
	id ItemID,
	description, unitOfMeasure string,
	leadTimeDays int,
	safetyStock decimal.Decimal,
	defaultSupplierID string,
) (*Item, error) {
	if string(id) == "" {
		return nil, fmt.Errorf("item id cannot be empty")
	}
	if leadTimeDays < 0 {
		return nil, fmt.Errorf("lead time days cannot be negative, got %d", leadTimeDays)
	}
	if safetyStock.IsNegative() {
		return nil, fmt.Errorf("safety stock cannot be negative, got %s", safetyStock)
	}
	if unitOfMeasure == "" {
		unitOfMeasure = "EA"
	}

	return &Item{
		ID:                id,
		Description:       description,
		UnitOfMeasure:     unitOfMeasure,
		LeadTimeDays:      leadTimeDays,
		SafetyStock:       safetyStock,
		DefaultSupplierID: defaultSupplierID,
	}, nil
}
