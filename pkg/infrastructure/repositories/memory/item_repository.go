package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// ItemRepository provides in-memory item master storage
type ItemRepository struct {
	mu       sync.RWMutex
	items    []entities.Item
	itemsMap map[entities.ItemID]int
}

// NewItemRepository creates a new in-memory item repository
func NewItemRepository(expectedItems int) *ItemRepository {
	return &ItemRepository{
		items:    make([]entities.Item, 0, expectedItems),
		itemsMap: make(map[entities.ItemID]int, expectedItems),
	}
}

// Verify interface compliance
var _ repositories.ItemRepository = (*ItemRepository)(nil)

// LoadItems upserts items by id
func (r *ItemRepository) LoadItems(_ context.Context, items []*entities.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if item == nil {
			return fmt.Errorf("nil item")
		}
		r.addItem(*item)
	}
	return nil
}

// AddItem upserts a single item
func (r *ItemRepository) AddItem(item entities.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addItem(item)
}

func (r *ItemRepository) addItem(item entities.Item) {
	if index, exists := r.itemsMap[item.ID]; exists {
		r.items[index] = item
		return
	}
	r.itemsMap[item.ID] = len(r.items)
	r.items = append(r.items, item)
}

// GetItem returns a copy of the item master record
func (r *ItemRepository) GetItem(_ context.Context, id entities.ItemID) (*entities.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, exists := r.itemsMap[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrItemNotFound, id)
	}
	item := r.items[index]
	return &item, nil
}

// GetAllItems returns all items sorted by id
func (r *ItemRepository) GetAllItems(_ context.Context) ([]*entities.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*entities.Item, 0, len(r.items))
	for i := range r.items {
		item := r.items[i]
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
