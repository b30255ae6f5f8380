package mrp

import (
	"context"
	"fmt"
	"sort"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// DefaultMaxBOMDepth bounds explosion depth when no limit is configured
const DefaultMaxBOMDepth = 64

// graphNode is one item in the explosion arena
type graphNode struct {
	ID    entities.ItemID
	Level int
	Edges []int // indexes into bomGraph.edges, component order
}

// bomGraph is the BOM closure of the demanded items.
// Nodes live in an arena addressed by index; edges are kept apart from nodes.
type bomGraph struct {
	nodes  []graphNode
	index  map[entities.ItemID]int
	edges  []entities.BOMEdge
	levels [][]int // node indexes per low-level code, sorted by ItemID
}

func (g *bomGraph) add(id entities.ItemID) int {
	if idx, ok := g.index[id]; ok {
		return idx
	}
	g.nodes = append(g.nodes, graphNode{ID: id})
	g.index[id] = len(g.nodes) - 1
	return len(g.nodes) - 1
}

// ItemIDs returns every item in the graph, sorted
func (g *bomGraph) ItemIDs() []entities.ItemID {
	ids := make([]entities.ItemID, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

type visitState uint8

const (
	unvisited visitState = iota
	onPath
	done
)

type graphBuilder struct {
	resolver repositories.BOMResolver
	maxDepth int
	graph    *bomGraph
	state    map[entities.ItemID]visitState
	path     []entities.ItemID
}

// buildBOMGraph explodes roots through the resolver. Each item is resolved once.
// A component met again on its own ancestry path, or a path deeper than
// maxDepth, aborts with *entities.CyclicBOMError.
func buildBOMGraph(
	ctx context.Context,
	resolver repositories.BOMResolver,
	roots []entities.ItemID,
	maxDepth int,
) (*bomGraph, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxBOMDepth
	}

	b := &graphBuilder{
		resolver: resolver,
		maxDepth: maxDepth,
		graph:    &bomGraph{index: make(map[entities.ItemID]int)},
		state:    make(map[entities.ItemID]visitState),
	}

	sorted := append([]entities.ItemID(nil), roots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, root := range sorted {
		if b.state[root] != unvisited {
			continue
		}
		if err := b.visit(ctx, root, 0); err != nil {
			return nil, err
		}
	}

	b.graph.assignLevels()
	return b.graph, nil
}

func (b *graphBuilder) visit(ctx context.Context, id entities.ItemID, depth int) error {
	if depth > b.maxDepth {
		chain := append(append([]entities.ItemID(nil), b.path...), id)
		return &entities.CyclicBOMError{Chain: chain, DepthExceeded: true}
	}

	idx := b.graph.add(id)
	b.state[id] = onPath
	b.path = append(b.path, id)

	components, err := b.resolver.ComponentsOf(ctx, id)
	if err != nil {
		return fmt.Errorf("components of %s: %w", id, err)
	}
	sort.SliceStable(components, func(i, j int) bool {
		return components[i].ComponentID < components[j].ComponentID
	})

	for _, edge := range components {
		edge.ParentID = id
		child := edge.ComponentID

		switch b.state[child] {
		case onPath:
			return &entities.CyclicBOMError{Chain: b.cycleFrom(child)}
		case unvisited:
			if err := b.visit(ctx, child, depth+1); err != nil {
				return err
			}
		}

		b.graph.nodes[idx].Edges = append(b.graph.nodes[idx].Edges, len(b.graph.edges))
		b.graph.edges = append(b.graph.edges, edge)
	}

	b.path = b.path[:len(b.path)-1]
	b.state[id] = done
	return nil
}

// cycleFrom returns the path segment that starts at id, closed by id again
func (b *graphBuilder) cycleFrom(id entities.ItemID) []entities.ItemID {
	for i, p := range b.path {
		if p == id {
			chain := append([]entities.ItemID(nil), b.path[i:]...)
			return append(chain, id)
		}
	}
	return []entities.ItemID{id, id}
}

// assignLevels computes low-level codes (longest path from any root) with
// Kahn's algorithm, so an item is netted only after all of its parents.
func (g *bomGraph) assignLevels() {
	inDegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		inDegree[g.index[e.ComponentID]]++
	}

	queue := make([]int, 0, len(g.nodes))
	for i := range g.nodes {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	maxLevel := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, ei := range g.nodes[current].Edges {
			child := g.index[g.edges[ei].ComponentID]
			if lvl := g.nodes[current].Level + 1; lvl > g.nodes[child].Level {
				g.nodes[child].Level = lvl
				if lvl > maxLevel {
					maxLevel = lvl
				}
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	g.levels = make([][]int, maxLevel+1)
	for i, n := range g.nodes {
		g.levels[n.Level] = append(g.levels[n.Level], i)
	}
	for _, level := range g.levels {
		sort.Slice(level, func(a, b int) bool { return g.nodes[level[a]].ID < g.nodes[level[b]].ID })
	}
}
