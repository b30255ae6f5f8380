package repositories

import (
	"context"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// ItemRepository provides access to item master data.
// GetItem returns entities.ErrItemNotFound for unknown ids.
type ItemRepository interface {
	GetItem(ctx context.Context, id entities.ItemID) (*entities.Item, error)
	GetAllItems(ctx context.Context) ([]*entities.Item, error)
	LoadItems(ctx context.Context, items []*entities.Item) error
}
