package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/domain/services"
)

var (
	itemsHeader  = []string{"item_id", "description", "unit_of_measure", "lead_time_days", "safety_stock", "default_supplier_id"}
	bomHeader    = []string{"parent_id", "component_id", "qty_per_unit", "lead_time_days"}
	supplyHeader = []string{"item_id", "quantity", "available_date", "kind", "reference"}
	demandHeader = []string{"item_id", "quantity", "needed_by", "source_type", "source_document"}
)

// Scenario is a complete planning input read from one directory
type Scenario struct {
	Items  []*entities.Item
	Edges  []*entities.BOMEdge
	Supply []*entities.SupplyRecord
	Demand []*entities.DemandRecord
}

// Loader handles loading MRP data from CSV files
type Loader struct {
	validator *services.BOMValidator
}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{validator: services.NewBOMValidator()}
}

// LoadScenario reads items.csv, bom.csv, supply.csv and demands.csv from dir.
// bom.csv and supply.csv are optional. The BOM is checked for cycles and
// references to unknown items before the scenario is returned.
func (l *Loader) LoadScenario(dir string) (*Scenario, error) {
	items, err := l.LoadItems(filepath.Join(dir, "items.csv"))
	if err != nil {
		return nil, err
	}

	var edges []*entities.BOMEdge
	if path := filepath.Join(dir, "bom.csv"); fileExists(path) {
		if edges, err = l.LoadBOM(path); err != nil {
			return nil, err
		}
	}

	var supply []*entities.SupplyRecord
	if path := filepath.Join(dir, "supply.csv"); fileExists(path) {
		if supply, err = l.LoadSupply(path); err != nil {
			return nil, err
		}
	}

	demand, err := l.LoadDemands(filepath.Join(dir, "demands.csv"))
	if err != nil {
		return nil, err
	}

	plain := make([]entities.BOMEdge, len(edges))
	for i, e := range edges {
		plain[i] = *e
	}
	if err := l.validator.ValidateBOM(plain).Err(); err != nil {
		return nil, err
	}
	if err := l.validator.ValidateItemConsistency(plain, items).Err(); err != nil {
		return nil, err
	}

	return &Scenario{Items: items, Edges: edges, Supply: supply, Demand: demand}, nil
}

// Store writes the scenario into any store implementing the master data and snapshot interfaces
func (s *Scenario) Store(
	ctx context.Context,
	items repositories.ItemRepository,
	bom repositories.BOMRepository,
	snapshots repositories.SnapshotLoader,
) error {
	if err := items.LoadItems(ctx, s.Items); err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	if err := bom.LoadEdges(ctx, s.Edges); err != nil {
		return fmt.Errorf("failed to load bom: %w", err)
	}
	if err := snapshots.LoadSupply(ctx, s.Supply); err != nil {
		return fmt.Errorf("failed to load supply: %w", err)
	}
	if err := snapshots.LoadDemand(ctx, s.Demand); err != nil {
		return fmt.Errorf("failed to load demand: %w", err)
	}
	return nil
}

// LoadItems loads items from a CSV file
func (l *Loader) LoadItems(filename string) ([]*entities.Item, error) {
	return loadRows(filename, "items", itemsHeader, parseItem)
}

// LoadBOM loads BOM edges from a CSV file
func (l *Loader) LoadBOM(filename string) ([]*entities.BOMEdge, error) {
	return loadRows(filename, "BOM", bomHeader, parseBOMEdge)
}

// LoadSupply loads on-hand stock and scheduled receipts from a CSV file
func (l *Loader) LoadSupply(filename string) ([]*entities.SupplyRecord, error) {
	return loadRows(filename, "supply", supplyHeader, parseSupply)
}

// LoadDemands loads independent demand from a CSV file
func (l *Loader) LoadDemands(filename string) ([]*entities.DemandRecord, error) {
	return loadRows(filename, "demands", demandHeader, parseDemand)
}

func loadRows[T any](filename, kind string, expectedHeader []string, parse func([]string) (*T, error)) ([]*T, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	out := make([]*T, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}

		row, err := parse(record)
		if err != nil {
			return nil, fmt.Errorf("%s CSV row %d: %w", kind, i+2, err)
		}
		out = append(out, row)
	}

	return out, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func parseItem(record []string) (*entities.Item, error) {
	leadTimeDays, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid lead_time_days: %s", record[3])
	}

	safetyStock := decimal.Zero
	if s := strings.TrimSpace(record[4]); s != "" {
		if safetyStock, err = decimal.NewFromString(s); err != nil {
			return nil, fmt.Errorf("invalid safety_stock: %s", record[4])
		}
	}

	return entities.NewItem(
		entities.ItemID(strings.TrimSpace(record[0])),
		record[1],
		strings.TrimSpace(record[2]),
		leadTimeDays,
		safetyStock,
		strings.TrimSpace(record[5]),
	)
}

func parseBOMEdge(record []string) (*entities.BOMEdge, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid qty_per_unit: %s", record[2])
	}

	leadTimeDays, err := strconv.Atoi(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid lead_time_days: %s", record[3])
	}

	return entities.NewBOMEdge(
		entities.ItemID(strings.TrimSpace(record[0])),
		entities.ItemID(strings.TrimSpace(record[1])),
		qty,
		leadTimeDays,
	)
}

func parseSupply(record []string) (*entities.SupplyRecord, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[1])
	}

	availableDate, err := time.Parse(time.DateOnly, strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid available_date format: %s (expected YYYY-MM-DD)", record[2])
	}

	kind, err := entities.ParseSupplyKind(strings.ToLower(strings.TrimSpace(record[3])))
	if err != nil {
		return nil, err
	}

	return entities.NewSupplyRecord(entities.ItemID(strings.TrimSpace(record[0])), qty, availableDate, kind, record[4])
}

func parseDemand(record []string) (*entities.DemandRecord, error) {
	qty, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[1])
	}

	neededBy, err := time.Parse(time.DateOnly, strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid needed_by format: %s (expected YYYY-MM-DD)", record[2])
	}

	source, err := entities.ParseDemandSource(strings.ToLower(strings.TrimSpace(record[3])))
	if err != nil {
		return nil, err
	}

	return entities.NewDemandRecord(entities.ItemID(strings.TrimSpace(record[0])), qty, neededBy, source, record[4])
}
