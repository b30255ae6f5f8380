// Package sqlite keeps planning scenarios (item master, BOM, supply and
// demand) in a single SQLite file for the command line tools.
package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
	"github.com/vsinha/mrp-planner/pkg/domain/services"
)

//go:embed schema.sql
var schema string

const dateLayout = "2006-01-02"

type Store struct {
	db *sqlx.DB
}

var (
	_ repositories.ItemRepository   = (*Store)(nil)
	_ repositories.BOMRepository    = (*Store)(nil)
	_ repositories.SnapshotProvider = (*Store)(nil)
	_ repositories.SnapshotLoader   = (*Store)(nil)
)

// Open opens (or creates) the scenario file at path and applies the schema
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema failed: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type itemRow struct {
	ID                string `db:"id"`
	Description       string `db:"description"`
	UnitOfMeasure     string `db:"unit_of_measure"`
	LeadTimeDays      int    `db:"lead_time_days"`
	SafetyStock       string `db:"safety_stock"`
	DefaultSupplierID string `db:"default_supplier_id"`
}

func (r itemRow) toEntity() (*entities.Item, error) {
	ss, err := decimal.NewFromString(r.SafetyStock)
	if err != nil {
		return nil, fmt.Errorf("item %s safety stock: %w", r.ID, err)
	}
	return &entities.Item{
		ID:                entities.ItemID(r.ID),
		Description:       r.Description,
		UnitOfMeasure:     r.UnitOfMeasure,
		LeadTimeDays:      r.LeadTimeDays,
		SafetyStock:       ss,
		DefaultSupplierID: r.DefaultSupplierID,
	}, nil
}

func (s *Store) GetItem(ctx context.Context, id entities.ItemID) (*entities.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM items WHERE id = ?`, string(id)); err != nil {
		return nil, fmt.Errorf("select item failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", entities.ErrItemNotFound, id)
	}
	return rows[0].toEntity()
}

func (s *Store) GetAllItems(ctx context.Context) ([]*entities.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM items ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select items failed: %w", err)
	}

	items := make([]*entities.Item, 0, len(rows))
	for _, r := range rows {
		item, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) LoadItems(ctx context.Context, items []*entities.Item) error {
	const q = `
		INSERT INTO items (id, description, unit_of_measure, lead_time_days, safety_stock, default_supplier_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			unit_of_measure = excluded.unit_of_measure,
			lead_time_days = excluded.lead_time_days,
			safety_stock = excluded.safety_stock,
			default_supplier_id = excluded.default_supplier_id`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, q)
		if err != nil {
			return fmt.Errorf("prepare item upsert failed: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, string(item.ID), item.Description, item.UnitOfMeasure,
				item.LeadTimeDays, item.SafetyStock.String(), item.DefaultSupplierID); err != nil {
				return fmt.Errorf("item upsert failed for %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

type edgeRow struct {
	ParentID        string `db:"parent_id"`
	ComponentID     string `db:"component_id"`
	QuantityPerUnit string `db:"quantity_per_unit"`
	LeadTimeDays    int    `db:"lead_time_days"`
}

func (s *Store) ComponentsOf(ctx context.Context, itemID entities.ItemID) ([]entities.BOMEdge, error) {
	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM bom_edges WHERE parent_id = ? ORDER BY component_id`, string(itemID)); err != nil {
		return nil, fmt.Errorf("select components failed: %w", err)
	}
	return toEdges(rows)
}

func (s *Store) GetAllEdges(ctx context.Context) ([]entities.BOMEdge, error) {
	var rows []edgeRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM bom_edges ORDER BY parent_id, component_id`); err != nil {
		return nil, fmt.Errorf("select edges failed: %w", err)
	}
	return toEdges(rows)
}

func toEdges(rows []edgeRow) ([]entities.BOMEdge, error) {
	edges := make([]entities.BOMEdge, 0, len(rows))
	for _, r := range rows {
		qty, err := decimal.NewFromString(r.QuantityPerUnit)
		if err != nil {
			return nil, fmt.Errorf("edge %s->%s quantity: %w", r.ParentID, r.ComponentID, err)
		}
		edges = append(edges, entities.BOMEdge{
			ParentID:        entities.ItemID(r.ParentID),
			ComponentID:     entities.ItemID(r.ComponentID),
			QuantityPerUnit: qty,
			LeadTimeDays:    r.LeadTimeDays,
		})
	}
	return edges, nil
}

func (s *Store) LoadEdges(ctx context.Context, edges []*entities.BOMEdge) error {
	const q = `
		INSERT INTO bom_edges (parent_id, component_id, quantity_per_unit, lead_time_days)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(parent_id, component_id) DO UPDATE SET
			quantity_per_unit = excluded.quantity_per_unit,
			lead_time_days = excluded.lead_time_days`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := validateMerged(ctx, tx, edges); err != nil {
			return err
		}

		stmt, err := tx.PreparexContext(ctx, q)
		if err != nil {
			return fmt.Errorf("prepare edge upsert failed: %w", err)
		}
		defer stmt.Close()

		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, string(e.ParentID), string(e.ComponentID),
				e.QuantityPerUnit.String(), e.LeadTimeDays); err != nil {
				return fmt.Errorf("edge upsert failed for %s->%s: %w", e.ParentID, e.ComponentID, err)
			}
		}
		return nil
	})
}

// validateMerged rejects an import that would close a cycle with the edges
// already stored.
func validateMerged(ctx context.Context, tx *sqlx.Tx, incoming []*entities.BOMEdge) error {
	var rows []edgeRow
	if err := tx.SelectContext(ctx, &rows, `SELECT * FROM bom_edges`); err != nil {
		return fmt.Errorf("select edges failed: %w", err)
	}
	existing, err := toEdges(rows)
	if err != nil {
		return err
	}

	type key struct{ parent, component entities.ItemID }
	overwritten := make(map[key]bool, len(incoming))
	merged := make([]entities.BOMEdge, 0, len(existing)+len(incoming))
	for _, e := range incoming {
		overwritten[key{e.ParentID, e.ComponentID}] = true
		merged = append(merged, *e)
	}
	for _, e := range existing {
		if !overwritten[key{e.ParentID, e.ComponentID}] {
			merged = append(merged, e)
		}
	}

	return services.NewBOMValidator().ValidateBOM(merged).Err()
}

func (s *Store) DemandedItems(ctx context.Context, horizon entities.Horizon) ([]entities.ItemID, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT item_id FROM demand_records WHERE needed_by_date < ? ORDER BY item_id`,
		horizon.End.Format(dateLayout)); err != nil {
		return nil, fmt.Errorf("select demanded items failed: %w", err)
	}

	out := make([]entities.ItemID, len(ids))
	for i, id := range ids {
		out[i] = entities.ItemID(id)
	}
	return out, nil
}

type supplyRow struct {
	ItemID        string `db:"item_id"`
	Quantity      string `db:"quantity"`
	AvailableDate string `db:"available_date"`
	Kind          string `db:"kind"`
	Reference     string `db:"reference"`
}

type demandRow struct {
	ItemID         string `db:"item_id"`
	Quantity       string `db:"quantity"`
	NeededByDate   string `db:"needed_by_date"`
	SourceType     string `db:"source_type"`
	SourceDocument string `db:"source_document"`
}

func (s *Store) SupplyAndDemand(
	ctx context.Context,
	itemIDs []entities.ItemID,
	horizon entities.Horizon,
) (*entities.Snapshot, error) {
	snapshot := &entities.Snapshot{}
	if len(itemIDs) == 0 {
		return snapshot, nil
	}

	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = string(id)
	}
	end := horizon.End.Format(dateLayout)

	q, args, err := sqlx.In(`
		SELECT item_id, quantity, available_date, kind, reference FROM supply_records
		WHERE item_id IN (?) AND available_date < ?
		ORDER BY item_id, available_date, id`, ids, end)
	if err != nil {
		return nil, err
	}
	var supply []supplyRow
	if err := s.db.SelectContext(ctx, &supply, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select supply failed: %w", err)
	}

	q, args, err = sqlx.In(`
		SELECT item_id, quantity, needed_by_date, source_type, source_document FROM demand_records
		WHERE item_id IN (?) AND needed_by_date < ?
		ORDER BY item_id, needed_by_date, id`, ids, end)
	if err != nil {
		return nil, err
	}
	var demand []demandRow
	if err := s.db.SelectContext(ctx, &demand, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("select demand failed: %w", err)
	}

	for _, r := range supply {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("supply %s quantity: %w", r.ItemID, err)
		}
		date, err := time.Parse(dateLayout, r.AvailableDate)
		if err != nil {
			return nil, fmt.Errorf("supply %s date: %w", r.ItemID, err)
		}
		kind, err := entities.ParseSupplyKind(r.Kind)
		if err != nil {
			return nil, err
		}
		snapshot.Supply = append(snapshot.Supply, entities.SupplyRecord{
			ItemID:        entities.ItemID(r.ItemID),
			Quantity:      qty,
			AvailableDate: date,
			Kind:          kind,
			Reference:     r.Reference,
		})
	}

	for _, r := range demand {
		qty, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return nil, fmt.Errorf("demand %s quantity: %w", r.ItemID, err)
		}
		date, err := time.Parse(dateLayout, r.NeededByDate)
		if err != nil {
			return nil, fmt.Errorf("demand %s date: %w", r.ItemID, err)
		}
		source, err := entities.ParseDemandSource(r.SourceType)
		if err != nil {
			return nil, err
		}
		snapshot.Demand = append(snapshot.Demand, entities.DemandRecord{
			ItemID:         entities.ItemID(r.ItemID),
			Quantity:       qty,
			NeededByDate:   date,
			SourceType:     source,
			SourceDocument: r.SourceDocument,
		})
	}

	return snapshot, nil
}

func (s *Store) LoadSupply(ctx context.Context, records []*entities.SupplyRecord) error {
	const q = `INSERT INTO supply_records (item_id, quantity, available_date, kind, reference) VALUES (?, ?, ?, ?, ?)`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range records {
			if _, err := tx.ExecContext(ctx, q, string(r.ItemID), r.Quantity.String(),
				r.AvailableDate.Format(dateLayout), r.Kind.String(), r.Reference); err != nil {
				return fmt.Errorf("supply insert failed for %s: %w", r.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadDemand(ctx context.Context, records []*entities.DemandRecord) error {
	const q = `INSERT INTO demand_records (item_id, quantity, needed_by_date, source_type, source_document) VALUES (?, ?, ?, ?, ?)`

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range records {
			if _, err := tx.ExecContext(ctx, q, string(r.ItemID), r.Quantity.String(),
				r.NeededByDate.Format(dateLayout), r.SourceType.String(), r.SourceDocument); err != nil {
				return fmt.Errorf("demand insert failed for %s: %w", r.ItemID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}
