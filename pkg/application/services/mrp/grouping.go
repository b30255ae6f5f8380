package mrp

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// LineGroup becomes one requisition header
type LineGroup struct {
	Key   string
	Lines []entities.PurchaseRequisitionLine
}

// Grouper decides how requisition lines are split into headers.
// It must place every line in exactly one group.
type Grouper interface {
	Group(ctx context.Context, lines []entities.PurchaseRequisitionLine) ([]LineGroup, error)
}

// SupplierGrouper groups lines by the item's default supplier
type SupplierGrouper struct {
	items repositories.ItemRepository
}

func NewSupplierGrouper(items repositories.ItemRepository) *SupplierGrouper {
	return &SupplierGrouper{items: items}
}

func (g *SupplierGrouper) Group(ctx context.Context, lines []entities.PurchaseRequisitionLine) ([]LineGroup, error) {
	suppliers := make(map[entities.ItemID]string, len(lines))
	for _, line := range lines {
		item, err := g.items.GetItem(ctx, line.ItemID)
		if err != nil {
			return nil, err
		}
		key := item.DefaultSupplierID
		if key == "" {
			key = entities.UnassignedGroup
		}
		suppliers[line.ItemID] = key
	}

	byKey := lo.GroupBy(lines, func(l entities.PurchaseRequisitionLine) string {
		return suppliers[l.ItemID]
	})

	keys := lo.Keys(byKey)
	sort.Strings(keys)

	groups := make([]LineGroup, 0, len(keys))
	for _, key := range keys {
		grouped := byKey[key]
		sort.Slice(grouped, func(i, j int) bool { return grouped[i].ItemID < grouped[j].ItemID })
		groups = append(groups, LineGroup{Key: key, Lines: grouped})
	}
	return groups, nil
}
