package repositories

import (
	"context"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// BOMResolver answers which components a parent item consumes.
// Implementations return edges ordered by ComponentID ascending.
type BOMResolver interface {
	ComponentsOf(ctx context.Context, itemID entities.ItemID) ([]entities.BOMEdge, error)
}

// BOMRepository stores Bill of Materials data
type BOMRepository interface {
	BOMResolver
	GetAllEdges(ctx context.Context) ([]entities.BOMEdge, error)
	LoadEdges(ctx context.Context, edges []*entities.BOMEdge) error
}
