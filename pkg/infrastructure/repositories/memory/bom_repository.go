package memory

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// BOMRepository keeps BOM edges in an arena indexed by parent item
type BOMRepository struct {
	mu         sync.RWMutex
	edges      []entities.BOMEdge
	bomIndexes map[entities.ItemID][]int
}

// NewBOMRepository creates a BOM repository sized for expectedEdges
func NewBOMRepository(expectedEdges int) *BOMRepository {
	return &BOMRepository{
		edges:      make([]entities.BOMEdge, 0, expectedEdges),
		bomIndexes: make(map[entities.ItemID][]int),
	}
}

// Verify interface compliance
var _ repositories.BOMRepository = (*BOMRepository)(nil)

// LoadEdges appends edges to the repository
func (r *BOMRepository) LoadEdges(_ context.Context, edges []*entities.BOMEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, edge := range edges {
		if edge == nil {
			return fmt.Errorf("nil bom edge")
		}
		r.addEdge(*edge)
	}
	return nil
}

// AddEdge adds a single edge
func (r *BOMRepository) AddEdge(edge entities.BOMEdge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addEdge(edge)
}

func (r *BOMRepository) addEdge(edge entities.BOMEdge) {
	index := len(r.edges)
	r.edges = append(r.edges, edge)
	r.bomIndexes[edge.ParentID] = append(r.bomIndexes[edge.ParentID], index)
}

// ComponentsOf returns a copy of the parent's edges ordered by component
func (r *BOMRepository) ComponentsOf(_ context.Context, itemID entities.ItemID) ([]entities.BOMEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indexes := r.bomIndexes[itemID]
	edges := make([]entities.BOMEdge, 0, len(indexes))
	for _, index := range indexes {
		edges = append(edges, r.edges[index])
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].ComponentID < edges[j].ComponentID })
	return edges, nil
}

// GetAllEdges returns every edge in insertion order
func (r *BOMRepository) GetAllEdges(_ context.Context) ([]entities.BOMEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]entities.BOMEdge(nil), r.edges...), nil
}

// MemoryStats provides memory usage statistics
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	Mallocs         uint64
	Frees           uint64
	HeapObjects     uint64
}

// GetMemoryStats returns current memory usage statistics
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		Mallocs:         m.Mallocs,
		Frees:           m.Frees,
		HeapObjects:     m.HeapObjects,
	}
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
