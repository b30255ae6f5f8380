package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MRPRequirement is the netting result of one item in one bucket
type MRPRequirement struct {
	RunID             uuid.UUID
	ItemID            ItemID
	Period            int
	PeriodStart       time.Time
	Level             int
	GrossRequirement  decimal.Decimal
	ScheduledReceipts decimal.Decimal
	OnHand            decimal.Decimal
	NetRequirement    decimal.Decimal
	PastDue           bool
}

// MRPShortage aggregates the uncoverable net requirement of one item
type MRPShortage struct {
	RunID        uuid.UUID
	ItemID       ItemID
	Quantity     decimal.Decimal
	NeededByDate time.Time
}
