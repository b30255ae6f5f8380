package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SupplyKind separates stock on hand from receipts that are still open
type SupplyKind int

const (
	OnHand SupplyKind = iota
	ScheduledReceipt
)

// String method for SupplyKind enum
func (k SupplyKind) String() string {
	switch k {
	case OnHand:
		return "on_hand"
	case ScheduledReceipt:
		return "receipt"
	default:
		return "unknown"
	}
}

// ParseSupplyKind converts the textual form back into a SupplyKind
func ParseSupplyKind(s string) (SupplyKind, error) {
	switch s {
	case "on_hand":
		return OnHand, nil
	case "receipt":
		return ScheduledReceipt, nil
	default:
		return 0, fmt.Errorf("invalid supply kind: %s", s)
	}
}

// SupplyRecord is inventory on hand or an expected receipt
type SupplyRecord struct {
	ItemID        ItemID
	Quantity      decimal.Decimal
	AvailableDate time.Time
	Kind          SupplyKind
	Reference     string
}

// NewSupplyRecord creates a validated SupplyRecord
func NewSupplyRecord(
	itemID ItemID,
	quantity decimal.Decimal,
	availableDate time.Time,
	kind SupplyKind,
	reference string,
) (*SupplyRecord, error) {
	if string(itemID) == "" {
		return nil, fmt.Errorf("item id cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("quantity cannot be negative, got %s", quantity)
	}
	if availableDate.IsZero() {
		return nil, fmt.Errorf("available date cannot be empty")
	}

	return &SupplyRecord{
		ItemID:        itemID,
		Quantity:      quantity,
		AvailableDate: availableDate,
		Kind:          kind,
		Reference:     reference,
	}, nil
}

// Snapshot is the supply and demand picture captured once per run
type Snapshot struct {
	Supply []SupplyRecord
	Demand []DemandRecord
}
