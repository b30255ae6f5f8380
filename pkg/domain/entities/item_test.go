package entities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestItem_Validation(t *testing.T) {
	validItem, err := NewItem("PART123", "Test Part", "", 10, decimal.NewFromInt(5), "SUP-1")
	if err != nil {
		t.Fatalf("Expected valid item creation to succeed: %v", err)
	}
	if validItem.ID != "PART123" {
		t.Errorf("Expected item id PART123, got %s", validItem.ID)
	}
	if validItem.UnitOfMeasure != "EA" {
		t.Errorf("Expected default unit of measure EA, got %s", validItem.UnitOfMeasure)
	}

	testCases := []struct {
		name        string
		id          ItemID
		leadTime    int
		safetyStock decimal.Decimal
		expectError string
	}{
		{"empty item id", "", 1, decimal.Zero, "item id cannot be empty"},
		{"negative lead time", "PART", -1, decimal.Zero, "lead time days cannot be negative, got -1"},
		{"negative safety stock", "PART", 1, decimal.NewFromInt(-2), "safety stock cannot be negative, got -2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewItem(tc.id, "desc", "EA", tc.leadTime, tc.safetyStock, "")
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestRecords_Validation(t *testing.T) {
	horizon, err := NewHorizon(mustDate("2025-01-06"), mustDate("2025-03-03"), 7)
	if err != nil {
		t.Fatalf("horizon: %v", err)
	}

	if _, err := NewDemandRecord("X", decimal.NewFromInt(30), horizon.Start, SalesOrder, "SO-1"); err != nil {
		t.Errorf("Expected valid demand: %v", err)
	}
	if _, err := NewDemandRecord("X", decimal.Zero, horizon.Start, SalesOrder, "SO-1"); err == nil {
		t.Error("Expected error for zero demand quantity")
	}
	if _, err := NewSupplyRecord("X", decimal.NewFromInt(-1), horizon.Start, OnHand, ""); err == nil {
		t.Error("Expected error for negative supply quantity")
	}
	if _, err := NewSupplyRecord("X", decimal.Zero, horizon.Start, ScheduledReceipt, "PO-1"); err != nil {
		t.Errorf("Expected zero supply to be accepted: %v", err)
	}

	source, err := ParseDemandSource(Forecast.String())
	if err != nil || source != Forecast {
		t.Errorf("Expected forecast round trip, got %v (%v)", source, err)
	}
	if _, err := ParseSupplyKind("consignment"); err == nil {
		t.Error("Expected error for unknown supply kind")
	}
}
