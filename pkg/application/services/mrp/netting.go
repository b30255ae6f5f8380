package mrp

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// Checkpoint is consulted before each BOM level; a non-nil error aborts netting
type Checkpoint func(ctx context.Context, level int) error

// NettingResult is the output of one netting pass
type NettingResult struct {
	Requirements []entities.MRPRequirement
	Items        map[entities.ItemID]*entities.Item
	Levels       int
}

// itemPlan holds the per-bucket vectors of one item while netting
type itemPlan struct {
	gross    []decimal.Decimal
	receipts []decimal.Decimal
	pastDue  []bool
	onHand   decimal.Decimal
}

func newItemPlan(periods int) *itemPlan {
	return &itemPlan{
		gross:    make([]decimal.Decimal, periods),
		receipts: make([]decimal.Decimal, periods),
		pastDue:  make([]bool, periods),
	}
}

// NettingCalculator turns gross requirements into net requirements level by level
type NettingCalculator struct {
	bom       repositories.BOMResolver
	items     repositories.ItemRepository
	snapshots repositories.SnapshotProvider
	maxDepth  int
}

func NewNettingCalculator(
	bom repositories.BOMResolver,
	items repositories.ItemRepository,
	snapshots repositories.SnapshotProvider,
	maxDepth int,
) *NettingCalculator {
	return &NettingCalculator{
		bom:       bom,
		items:     items,
		snapshots: snapshots,
		maxDepth:  maxDepth,
	}
}

// Calculate runs lot-for-lot netting over the horizon. Output is ordered by
// (Level, ItemID, Period) and is identical for identical inputs.
func (c *NettingCalculator) Calculate(
	ctx context.Context,
	runID uuid.UUID,
	horizon entities.Horizon,
	checkpoint Checkpoint,
) (*NettingResult, error) {
	roots, err := c.snapshots.DemandedItems(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("demanded items: %w", err)
	}

	graph, err := buildBOMGraph(ctx, c.bom, roots, c.maxDepth)
	if err != nil {
		return nil, err
	}

	itemIDs := graph.ItemIDs()
	items := make(map[entities.ItemID]*entities.Item, len(itemIDs))
	for _, id := range itemIDs {
		item, err := c.items.GetItem(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", id, err)
		}
		items[id] = item
	}

	snapshot, err := c.snapshots.SupplyAndDemand(ctx, itemIDs, horizon)
	if err != nil {
		return nil, fmt.Errorf("supply and demand: %w", err)
	}

	periods := horizon.Periods()
	plans := make([]*itemPlan, len(graph.nodes))
	for i := range plans {
		plans[i] = newItemPlan(periods)
	}
	c.bucketSnapshot(snapshot, horizon, graph, plans)

	requirements := make([]entities.MRPRequirement, 0, len(graph.nodes))
	for level, nodes := range graph.levels {
		if checkpoint != nil {
			if err := checkpoint(ctx, level); err != nil {
				return nil, err
			}
		}

		for _, idx := range nodes {
			node := graph.nodes[idx]
			plan := plans[idx]
			net := c.netItem(plan, items[node.ID].SafetyStock)

			for p := 0; p < periods; p++ {
				if plan.gross[p].IsZero() && plan.receipts[p].IsZero() && net.net[p].IsZero() {
					continue
				}
				requirements = append(requirements, entities.MRPRequirement{
					RunID:             runID,
					ItemID:            node.ID,
					Period:            p,
					PeriodStart:       horizon.PeriodStart(p),
					Level:             level,
					GrossRequirement:  plan.gross[p],
					ScheduledReceipts: plan.receipts[p],
					OnHand:            net.available[p],
					NetRequirement:    net.net[p],
					PastDue:           plan.pastDue[p],
				})
			}

			c.explode(graph, node, net.net, horizon, plans)
		}
	}

	return &NettingResult{
		Requirements: requirements,
		Items:        items,
		Levels:       len(graph.levels),
	}, nil
}

// bucketSnapshot spreads independent demand and supply over the buckets.
// Overdue demand lands in bucket 0 flagged past due; anything dated at or
// after the horizon end is ignored.
func (c *NettingCalculator) bucketSnapshot(
	snapshot *entities.Snapshot,
	horizon entities.Horizon,
	graph *bomGraph,
	plans []*itemPlan,
) {
	periods := horizon.Periods()

	demand := append([]entities.DemandRecord(nil), snapshot.Demand...)
	sort.SliceStable(demand, func(i, j int) bool { return demand[i].ItemID < demand[j].ItemID })
	for _, d := range demand {
		idx, ok := graph.index[d.ItemID]
		if !ok {
			continue
		}
		p := horizon.PeriodOf(d.NeededByDate)
		if p >= periods {
			continue
		}
		if p < 0 {
			p = 0
			plans[idx].pastDue[0] = true
		}
		plans[idx].gross[p] = plans[idx].gross[p].Add(d.Quantity)
	}

	for _, s := range snapshot.Supply {
		idx, ok := graph.index[s.ItemID]
		if !ok {
			continue
		}
		if horizon.AvailableAtStart(s.AvailableDate) {
			plans[idx].onHand = plans[idx].onHand.Add(s.Quantity)
			continue
		}
		if p := horizon.PeriodOf(s.AvailableDate); p < periods {
			plans[idx].receipts[p] = plans[idx].receipts[p].Add(s.Quantity)
		}
	}
}

type netting struct {
	net       []decimal.Decimal
	available []decimal.Decimal // projected available at the start of each bucket
}

// netItem applies lot-for-lot netting: each bucket's shortfall below safety
// stock becomes its net requirement and is assumed covered, so unconsumed
// supply carries forward and earlier shortfalls are never counted twice.
func (c *NettingCalculator) netItem(plan *itemPlan, safetyStock decimal.Decimal) netting {
	periods := len(plan.gross)
	out := netting{
		net:       make([]decimal.Decimal, periods),
		available: make([]decimal.Decimal, periods),
	}

	available := plan.onHand
	for p := 0; p < periods; p++ {
		out.available[p] = available
		projected := available.Add(plan.receipts[p]).Sub(plan.gross[p])
		if projected.LessThan(safetyStock) {
			out.net[p] = safetyStock.Sub(projected)
			available = safetyStock
			continue
		}
		available = projected
	}

	return out
}

// explode pushes net requirements down to components, offset by the edge lead
// time. Offsets reaching before the horizon start are clamped to bucket 0.
func (c *NettingCalculator) explode(
	graph *bomGraph,
	node graphNode,
	net []decimal.Decimal,
	horizon entities.Horizon,
	plans []*itemPlan,
) {
	for _, ei := range node.Edges {
		edge := graph.edges[ei]
		child := plans[graph.index[edge.ComponentID]]
		offset := horizon.LeadTimePeriods(edge.LeadTimeDays)

		for p, qty := range net {
			if !qty.IsPositive() {
				continue
			}
			target := p - offset
			if target < 0 {
				target = 0
				child.pastDue[0] = true
			}
			child.gross[target] = child.gross[target].Add(qty.Mul(edge.QuantityPerUnit))
		}
	}
}
