package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/csv"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Items     int     // Total number of items to generate
	MaxDepth  int     // Maximum depth of BOM tree
	Demands   int     // Number of top-level demand lines
	Inventory float64 // Supply multiplier (e.g., 0.5 = half coverage, 4.0 = 4x coverage)
	Suppliers int     // Size of the supplier pool; some items are left without one
	Start     time.Time
	OutputDir string
	Seed      uint64 // Random seed for reproducible generation
	Verbose   bool
}

// GenerateCommand writes a random acyclic planning scenario as CSV files
type GenerateCommand struct {
	config GenerateConfig
	faker  *gofakeit.Faker
}

// NewGenerateCommand creates a new generate command. A zero seed draws a random one.
func NewGenerateCommand(config GenerateConfig) *GenerateCommand {
	if config.Suppliers <= 0 {
		config.Suppliers = 5
	}
	if config.Start.IsZero() {
		config.Start = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	}
	return &GenerateCommand{
		config: config,
		faker:  gofakeit.New(config.Seed),
	}
}

// bomNode is one item in the generated tree. Components always sit on a
// deeper level than their parents, which keeps the graph acyclic.
type bomNode struct {
	id       entities.ItemID
	level    int
	children []bomChild
	parents  int
}

type bomChild struct {
	node *bomNode
	qty  int
}

// Execute runs the generate command
func (cmd *GenerateCommand) Execute(_ context.Context) error {
	if cmd.config.Items <= 0 || cmd.config.MaxDepth <= 0 || cmd.config.Demands <= 0 {
		return fmt.Errorf("items, max-depth and demands must be positive")
	}
	if cmd.config.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	if cmd.config.Verbose {
		fmt.Printf("Generating scenario with %d items, max depth %d, %d demands, %.1fx supply\n",
			cmd.config.Items, cmd.config.MaxDepth, cmd.config.Demands, cmd.config.Inventory)
	}

	scenario, err := cmd.Build()
	if err != nil {
		return err
	}

	if err := csv.WriteScenario(cmd.config.OutputDir, scenario); err != nil {
		return fmt.Errorf("failed to write scenario: %w", err)
	}

	if cmd.config.Verbose {
		fmt.Printf("Scenario written to %s (%d items, %d edges, %d supply, %d demand)\n",
			cmd.config.OutputDir, len(scenario.Items), len(scenario.Edges), len(scenario.Supply), len(scenario.Demand))
	}
	return nil
}

// Build generates the scenario in memory
func (cmd *GenerateCommand) Build() (*csv.Scenario, error) {
	nodes, roots := cmd.generateTree()

	suppliers := make([]string, cmd.config.Suppliers)
	for i := range suppliers {
		suppliers[i] = fmt.Sprintf("SUP-%03d", i+1)
	}

	scenario := &csv.Scenario{}
	for _, node := range nodes {
		supplier := ""
		if node.level > 0 && cmd.faker.Float64() < 0.85 {
			supplier = cmd.faker.RandomString(suppliers)
		}
		item, err := entities.NewItem(
			node.id,
			cmd.faker.ProductName(),
			cmd.faker.RandomString([]string{"EA", "EA", "EA", "KG", "M"}),
			cmd.leadTime(node),
			decimal.NewFromInt(int64(cmd.faker.IntRange(0, 3))),
			supplier,
		)
		if err != nil {
			return nil, err
		}
		scenario.Items = append(scenario.Items, item)

		for _, child := range node.children {
			edge, err := entities.NewBOMEdge(node.id, child.node.id, decimal.NewFromInt(int64(child.qty)), cmd.faker.IntRange(0, 14))
			if err != nil {
				return nil, err
			}
			scenario.Edges = append(scenario.Edges, edge)
		}
	}

	for i := 0; i < cmd.config.Demands; i++ {
		root := roots[cmd.faker.IntRange(0, len(roots)-1)]
		record, err := entities.NewDemandRecord(
			root.id,
			decimal.NewFromInt(int64(cmd.faker.IntRange(1, 5))),
			cmd.config.Start.AddDate(0, 0, cmd.faker.IntRange(14, 180)),
			entities.DemandSource(cmd.faker.IntRange(0, 2)),
			fmt.Sprintf("SO-%05d", i+1),
		)
		if err != nil {
			return nil, err
		}
		scenario.Demand = append(scenario.Demand, record)
	}

	counts := make(map[entities.ItemID]int)
	explode(roots[0], 1, counts)
	for _, node := range nodes {
		qty := int(float64(counts[node.id]) * cmd.config.Inventory)
		if qty <= 0 {
			continue
		}

		kind := entities.OnHand
		available := cmd.config.Start
		reference := ""
		if cmd.faker.Float64() < 0.3 {
			kind = entities.ScheduledReceipt
			available = cmd.config.Start.AddDate(0, 0, cmd.faker.IntRange(7, 90))
			reference = fmt.Sprintf("PO-%05d", len(scenario.Supply)+1)
		}
		record, err := entities.NewSupplyRecord(node.id, decimal.NewFromInt(int64(qty)), available, kind, reference)
		if err != nil {
			return nil, err
		}
		scenario.Supply = append(scenario.Supply, record)
	}

	return scenario, nil
}

// generateTree builds the tree level by level, occasionally reusing a
// node from the current level so components are shared between parents.
func (cmd *GenerateCommand) generateTree() ([]*bomNode, []*bomNode) {
	var nodes, roots []*bomNode

	numRoots := max(1, cmd.config.Items/50+cmd.faker.IntRange(0, 2))
	for i := 0; i < numRoots; i++ {
		node := &bomNode{id: entities.ItemID(fmt.Sprintf("ROOT_ASSEMBLY_%03d", i+1))}
		nodes = append(nodes, node)
		roots = append(roots, node)
	}

	current := roots
	for level := 1; level <= cmd.config.MaxDepth && len(nodes) < cmd.config.Items; level++ {
		var next []*bomNode
		for _, parent := range current {
			numChildren := cmd.faker.IntRange(2, 8)
			for c := 0; c < numChildren && len(nodes) < cmd.config.Items; c++ {
				var child *bomNode
				if len(next) > 0 && cmd.faker.Float64() < 0.2 {
					candidate := next[cmd.faker.IntRange(0, len(next)-1)]
					if candidate.parents < 3 && !hasChild(parent, candidate) {
						child = candidate
					}
				}
				if child == nil {
					child = &bomNode{id: entities.ItemID(fmt.Sprintf("PART_L%d_%04d", level, len(nodes))), level: level}
					nodes = append(nodes, child)
					next = append(next, child)
				}

				qty := cmd.faker.IntRange(1, 5)
				if level > 2 {
					qty += cmd.faker.IntRange(0, 5)
				}
				parent.children = append(parent.children, bomChild{node: child, qty: qty})
				child.parents++
			}
		}
		if len(next) == 0 {
			break
		}
		current = next
	}

	return nodes, roots
}

func hasChild(parent, node *bomNode) bool {
	for _, c := range parent.children {
		if c.node == node {
			return true
		}
	}
	return false
}

// leadTime scales with how close the item sits to the top of the tree
func (cmd *GenerateCommand) leadTime(node *bomNode) int {
	switch {
	case node.level == 0:
		return cmd.faker.IntRange(60, 120)
	case node.level <= 2:
		return cmd.faker.IntRange(30, 60)
	case node.level <= 4:
		return cmd.faker.IntRange(14, 30)
	default:
		return cmd.faker.IntRange(7, 14)
	}
}

// explode sums the quantity of every item needed for qty units of node
func explode(node *bomNode, qty int, counts map[entities.ItemID]int) {
	counts[node.id] += qty
	for _, c := range node.children {
		explode(c.node, qty*c.qty, counts)
	}
}
