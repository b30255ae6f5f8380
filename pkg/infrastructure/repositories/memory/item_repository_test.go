package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func TestItemRepository_LoadAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepository(2)

	item := &entities.Item{
		ID:                "TEST_PART",
		Description:       "Test Part",
		UnitOfMeasure:     "EA",
		LeadTimeDays:      20,
		SafetyStock:       decimal.NewFromInt(2),
		DefaultSupplierID: "SUP-1",
	}
	if err := repo.LoadItems(ctx, []*entities.Item{item}); err != nil {
		t.Fatalf("Failed to load item: %v", err)
	}

	retrieved, err := repo.GetItem(ctx, "TEST_PART")
	if err != nil {
		t.Fatalf("Failed to get item: %v", err)
	}
	if retrieved.LeadTimeDays != 20 {
		t.Errorf("Expected lead time 20, got %d", retrieved.LeadTimeDays)
	}
	if retrieved.DefaultSupplierID != "SUP-1" {
		t.Errorf("Expected supplier SUP-1, got %s", retrieved.DefaultSupplierID)
	}
}

func TestItemRepository_UpsertReplacesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewItemRepository(1)

	repo.AddItem(entities.Item{ID: "DUP", Description: "First"})
	repo.AddItem(entities.Item{ID: "DUP", Description: "Second"})

	all, err := repo.GetAllItems(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 item after upsert, got %d", len(all))
	}
	if all[0].Description != "Second" {
		t.Errorf("Expected description Second, got %s", all[0].Description)
	}
}

func TestItemRepository_NotFound(t *testing.T) {
	repo := NewItemRepository(0)

	_, err := repo.GetItem(context.Background(), "MISSING")
	if !errors.Is(err, entities.ErrItemNotFound) {
		t.Fatalf("Expected ErrItemNotFound, got %v", err)
	}
}
