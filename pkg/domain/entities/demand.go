package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DemandSource identifies where independent demand originates
type DemandSource int

const (
	SalesOrder DemandSource = iota
	ProductionOrder
	Forecast
)

// String method for DemandSource enum
func (s DemandSource) String() string {
	switch s {
	case SalesOrder:
		return "sales_order"
	case ProductionOrder:
		return "production_order"
	case Forecast:
		return "forecast"
	default:
		return "unknown"
	}
}

// ParseDemandSource converts the textual form back into a DemandSource
func ParseDemandSource(s string) (DemandSource, error) {
	switch s {
	case "sales_order":
		return SalesOrder, nil
	case "production_order":
		return ProductionOrder, nil
	case "forecast":
		return Forecast, nil
	default:
		return 0, fmt.Errorf("invalid demand source: %s", s)
	}
}

// DemandRecord is a single independent demand line
type DemandRecord struct {
	ItemID         ItemID
	Quantity       decimal.Decimal
	NeededByDate   time.Time
	SourceType     DemandSource
	SourceDocument string
}

// NewDemandRecord creates a validated DemandRecord
func NewDemandRecord(
	itemID ItemID,
	quantity decimal.Decimal,
	neededBy time.Time,
	sourceType DemandSource,
	sourceDocument string,
) (*DemandRecord, error) {
	if string(itemID) == "" {
		return nil, fmt.Errorf("item id cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if neededBy.IsZero() {
		return nil, fmt.Errorf("needed by date cannot be empty")
	}

	return &DemandRecord{
		ItemID:         itemID,
		Quantity:       quantity,
		NeededByDate:   neededBy,
		SourceType:     sourceType,
		SourceDocument: sourceDocument,
	}, nil
}
