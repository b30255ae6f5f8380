package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnassignedGroup collects lines whose item has no default supplier
const UnassignedGroup = "UNASSIGNED"

// PurchaseRequisitionLine requests procurement of one shortage
type PurchaseRequisitionLine struct {
	ID            uuid.UUID
	RunID         uuid.UUID
	ItemID        ItemID
	Quantity      decimal.Decimal
	NeededBy      time.Time
	UnitOfMeasure string
}

// Key is the idempotency key of the line within its run
func (l PurchaseRequisitionLine) Key() RequisitionKey {
	return RequisitionKey{RunID: l.RunID, ItemID: l.ItemID}
}

// NewRequisitionLine creates a line from a shortage
func NewRequisitionLine(shortage MRPShortage, unitOfMeasure string) (*PurchaseRequisitionLine, error) {
	if shortage.RunID == uuid.Nil {
		return nil, fmt.Errorf("run id cannot be empty")
	}
	if !shortage.Quantity.IsPositive() {
		return nil, fmt.Errorf("shortage quantity must be positive, got %s", shortage.Quantity)
	}

	return &PurchaseRequisitionLine{
		ID:            uuid.New(),
		RunID:         shortage.RunID,
		ItemID:        shortage.ItemID,
		Quantity:      shortage.Quantity,
		NeededBy:      shortage.NeededByDate,
		UnitOfMeasure: unitOfMeasure,
	}, nil
}

// PurchaseRequisition is a header grouping lines for procurement
type PurchaseRequisition struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	GroupKey  string
	CreatedBy string
	CreatedAt time.Time
	Lines     []PurchaseRequisitionLine
	// ExternalID is the identifier assigned by the requisition sink.
	ExternalID string
}

// RequisitionKey identifies a generated line for idempotency
type RequisitionKey struct {
	RunID  uuid.UUID
	ItemID ItemID
}
