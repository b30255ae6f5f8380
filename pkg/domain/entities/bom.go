package entities

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BOMEdge links a parent item to one of its components
type BOMEdge struct {
	ParentID        ItemID
	ComponentID     ItemID
	QuantityPerUnit decimal.Decimal
	// LeadTimeDays offsets the component's dependent demand ahead of the parent's need.
	LeadTimeDays int
}

// NewBOMEdge creates a validated BOMEdge
func NewBOMEdge(parentID, componentID ItemID, qtyPerUnit decimal.Decimal, leadTimeDays int) (*BOMEdge, error) {
	if string(parentID) == "" {
		return nil, fmt.Errorf("parent item id cannot be empty")
	}
	if string(componentID) == "" {
		return nil, fmt.Errorf("component item id cannot be empty")
	}
	if parentID == componentID {
		return nil, fmt.Errorf("parent and component cannot be the same: %s", parentID)
	}
	if !qtyPerUnit.IsPositive() {
		return nil, fmt.Errorf("quantity per unit must be positive, got %s", qtyPerUnit)
	}
	if leadTimeDays < 0 {
		return nil, fmt.Errorf("lead time days cannot be negative, got %d", leadTimeDays)
	}

	return &BOMEdge{
		ParentID:        parentID,
		ComponentID:     componentID,
		QuantityPerUnit: qtyPerUnit,
		LeadTimeDays:    leadTimeDays,
	}, nil
}
