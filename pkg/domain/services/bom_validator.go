package services

import (
	"fmt"
	"sort"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// BOMValidator checks imported BOM structure before it is used for planning
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles      bool
	CyclePaths     [][]entities.ItemID
	DuplicateEdges []entities.BOMEdge
	UnknownItems   []entities.ItemID
	Errors         []string
}

// Valid reports whether no error was found
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Err folds the result into a single error wrapping entities.ErrCyclicBOM when cycles exist
func (r *ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	if r.HasCycles {
		return fmt.Errorf("%w: %v", &entities.CyclicBOMError{Chain: r.CyclePaths[0]}, r.Errors)
	}
	return fmt.Errorf("%w: %v", entities.ErrValidation, r.Errors)
}

// ValidateBOM performs cycle and duplicate detection on a set of BOM edges
func (v *BOMValidator) ValidateBOM(edges []entities.BOMEdge) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:     make([][]entities.ItemID, 0),
		DuplicateEdges: make([]entities.BOMEdge, 0),
		Errors:         make([]string, 0),
	}

	adjacency := v.buildAdjacencyMap(edges)

	result.CyclePaths = v.detectCycles(adjacency)
	result.HasCycles = len(result.CyclePaths) > 0
	result.DuplicateEdges = v.detectDuplicateEdges(edges)

	for _, cycle := range result.CyclePaths {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
	}
	if len(result.DuplicateEdges) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate BOM edges", len(result.DuplicateEdges)))
	}

	return result
}

// ValidateItemConsistency reports BOM edges that reference items missing from the item master
func (v *BOMValidator) ValidateItemConsistency(edges []entities.BOMEdge, items []*entities.Item) *ValidationResult {
	result := &ValidationResult{Errors: make([]string, 0)}

	known := make(map[entities.ItemID]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	seen := make(map[entities.ItemID]bool)
	for _, edge := range edges {
		for _, id := range []entities.ItemID{edge.ParentID, edge.ComponentID} {
			if !known[id] && !seen[id] {
				seen[id] = true
				result.UnknownItems = append(result.UnknownItems, id)
			}
		}
	}

	if len(result.UnknownItems) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM references unknown items: %v", result.UnknownItems))
	}

	return result
}

// buildAdjacencyMap creates a map of parent -> components, each list sorted
func (v *BOMValidator) buildAdjacencyMap(edges []entities.BOMEdge) map[entities.ItemID][]entities.ItemID {
	adjacency := make(map[entities.ItemID][]entities.ItemID)
	seen := make(map[[2]entities.ItemID]bool)

	for _, edge := range edges {
		key := [2]entities.ItemID{edge.ParentID, edge.ComponentID}
		if seen[key] {
			continue
		}
		seen[key] = true
		adjacency[edge.ParentID] = append(adjacency[edge.ParentID], edge.ComponentID)
	}

	for parent := range adjacency {
		children := adjacency[parent]
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
	}

	return adjacency
}

// detectCycles uses DFS to find cycles, visiting parents in sorted order
func (v *BOMValidator) detectCycles(adjacency map[entities.ItemID][]entities.ItemID) [][]entities.ItemID {
	visited := make(map[entities.ItemID]bool)
	onPath := make(map[entities.ItemID]bool)
	cycles := make([][]entities.ItemID, 0)

	parents := make([]entities.ItemID, 0, len(adjacency))
	for parent := range adjacency {
		parents = append(parents, parent)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacency, visited, onPath, nil, &cycles)
		}
	}

	return cycles
}

func (v *BOMValidator) dfsDetectCycle(
	current entities.ItemID,
	adjacency map[entities.ItemID][]entities.ItemID,
	visited map[entities.ItemID]bool,
	onPath map[entities.ItemID]bool,
	path []entities.ItemID,
	cycles *[][]entities.ItemID,
) {
	visited[current] = true
	onPath[current] = true
	path = append(path, current)

	for _, child := range adjacency[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacency, visited, onPath, path, cycles)
			continue
		}
		if !onPath[child] {
			continue
		}
		for i, id := range path {
			if id == child {
				cycle := make([]entities.ItemID, 0, len(path)-i+1)
				cycle = append(cycle, path[i:]...)
				cycle = append(cycle, child)
				*cycles = append(*cycles, cycle)
				break
			}
		}
	}

	onPath[current] = false
}

// detectDuplicateEdges finds edges repeating the same parent and component
func (v *BOMValidator) detectDuplicateEdges(edges []entities.BOMEdge) []entities.BOMEdge {
	seen := make(map[[2]entities.ItemID]entities.BOMEdge)
	duplicates := make([]entities.BOMEdge, 0)

	for _, edge := range edges {
		key := [2]entities.ItemID{edge.ParentID, edge.ComponentID}
		if existing, exists := seen[key]; exists {
			duplicates = append(duplicates, existing, edge)
			continue
		}
		seen[key] = edge
	}

	return duplicates
}
