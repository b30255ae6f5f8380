package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// masterDataRepository serves items, BOM edges and the supply/demand snapshot
type masterDataRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

func NewMasterDataRepository(pool *pgxpool.Pool) *masterDataRepository {
	return &masterDataRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var (
	_ repositories.ItemRepository   = (*masterDataRepository)(nil)
	_ repositories.BOMRepository    = (*masterDataRepository)(nil)
	_ repositories.SnapshotProvider = (*masterDataRepository)(nil)
	_ repositories.SnapshotLoader   = (*masterDataRepository)(nil)
)

var itemColumns = []string{
	"id", "description", "unit_of_measure", "lead_time_days", "safety_stock::text", "default_supplier_id",
}

func (r *masterDataRepository) GetItem(ctx context.Context, id entities.ItemID) (*entities.Item, error) {
	sqlStr, args, err := r.sb.
		Select(itemColumns...).
		From("items").
		Where(sq.Eq{"id": string(id)}).
		ToSql()
	if err != nil {
		return nil, err
	}

	item, err := scanItem(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", entities.ErrItemNotFound, id)
		}
		return nil, err
	}
	return item, nil
}

func (r *masterDataRepository) GetAllItems(ctx context.Context) ([]*entities.Item, error) {
	sqlStr, args, err := r.sb.Select(itemColumns...).From("items").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entities.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*entities.Item, error) {
	var (
		item        entities.Item
		id          string
		safetyStock string
	)
	if err := row.Scan(&id, &item.Description, &item.UnitOfMeasure, &item.LeadTimeDays,
		&safetyStock, &item.DefaultSupplierID); err != nil {
		return nil, err
	}

	item.ID = entities.ItemID(id)
	ss, err := decimal.NewFromString(safetyStock)
	if err != nil {
		return nil, err
	}
	item.SafetyStock = ss
	return &item, nil
}

func (r *masterDataRepository) LoadItems(ctx context.Context, items []*entities.Item) error {
	for start := 0; start < len(items); start += insertChunk {
		end := min(start+insertChunk, len(items))
		q := r.sb.Insert("items").Columns(
			"id", "description", "unit_of_measure", "lead_time_days", "safety_stock", "default_supplier_id",
		)
		for _, item := range items[start:end] {
			q = q.Values(string(item.ID), item.Description, item.UnitOfMeasure, item.LeadTimeDays,
				item.SafetyStock.String(), item.DefaultSupplierID)
		}
		q = q.Suffix(`ON CONFLICT (id) DO UPDATE SET
			description = EXCLUDED.description,
			unit_of_measure = EXCLUDED.unit_of_measure,
			lead_time_days = EXCLUDED.lead_time_days,
			safety_stock = EXCLUDED.safety_stock,
			default_supplier_id = EXCLUDED.default_supplier_id`)

		if err := r.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *masterDataRepository) ComponentsOf(ctx context.Context, itemID entities.ItemID) ([]entities.BOMEdge, error) {
	return r.edges(ctx, sq.Eq{"parent_id": string(itemID)})
}

func (r *masterDataRepository) GetAllEdges(ctx context.Context) ([]entities.BOMEdge, error) {
	return r.edges(ctx, nil)
}

func (r *masterDataRepository) edges(ctx context.Context, where sq.Sqlizer) ([]entities.BOMEdge, error) {
	q := r.sb.
		Select("parent_id", "component_id", "quantity_per_unit::text", "lead_time_days").
		From("bom_edges").
		OrderBy("parent_id", "component_id")
	if where != nil {
		q = q.Where(where)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]entities.BOMEdge, 0)
	for rows.Next() {
		var (
			edge              entities.BOMEdge
			parent, component string
			qty               string
		)
		if err := rows.Scan(&parent, &component, &qty, &edge.LeadTimeDays); err != nil {
			return nil, err
		}
		edge.ParentID = entities.ItemID(parent)
		edge.ComponentID = entities.ItemID(component)
		if edge.QuantityPerUnit, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

func (r *masterDataRepository) LoadEdges(ctx context.Context, edges []*entities.BOMEdge) error {
	for start := 0; start < len(edges); start += insertChunk {
		end := min(start+insertChunk, len(edges))
		q := r.sb.Insert("bom_edges").Columns("parent_id", "component_id", "quantity_per_unit", "lead_time_days")
		for _, e := range edges[start:end] {
			q = q.Values(string(e.ParentID), string(e.ComponentID), e.QuantityPerUnit.String(), e.LeadTimeDays)
		}
		q = q.Suffix(`ON CONFLICT (parent_id, component_id) DO UPDATE SET
			quantity_per_unit = EXCLUDED.quantity_per_unit,
			lead_time_days = EXCLUDED.lead_time_days`)

		if err := r.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *masterDataRepository) DemandedItems(ctx context.Context, horizon entities.Horizon) ([]entities.ItemID, error) {
	sqlStr, args, err := r.sb.
		Select("DISTINCT item_id").
		From("demand_records").
		Where(sq.Lt{"needed_by_date": horizon.End}).
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]entities.ItemID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, entities.ItemID(id))
	}
	return ids, rows.Err()
}

func (r *masterDataRepository) SupplyAndDemand(
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

	// one read-only transaction so supply and demand come from the same snapshot
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		supply, err := r.supply(ctx, tx, ids, horizon)
		if err != nil {
			return fmt.Errorf("supply: %w", err)
		}
		demand, err := r.demand(ctx, tx, ids, horizon)
		if err != nil {
			return fmt.Errorf("demand: %w", err)
		}
		snapshot.Supply = supply
		snapshot.Demand = demand
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *masterDataRepository) supply(ctx context.Context, tx pgx.Tx, ids []string, horizon entities.Horizon) ([]entities.SupplyRecord, error) {
	sqlStr, args, err := r.sb.
		Select("item_id", "quantity::text", "available_date", "kind", "reference").
		From("supply_records").
		Where(sq.Eq{"item_id": ids}).
		Where(sq.Lt{"available_date": horizon.End}).
		OrderBy("item_id", "available_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]entities.SupplyRecord, 0)
	for rows.Next() {
		var (
			rec               entities.SupplyRecord
			itemID, qty, kind string
		)
		if err := rows.Scan(&itemID, &qty, &rec.AvailableDate, &kind, &rec.Reference); err != nil {
			return nil, err
		}
		rec.ItemID = entities.ItemID(itemID)
		rec.AvailableDate = rec.AvailableDate.UTC()
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.Kind, err = entities.ParseSupplyKind(kind); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *masterDataRepository) demand(ctx context.Context, tx pgx.Tx, ids []string, horizon entities.Horizon) ([]entities.DemandRecord, error) {
	sqlStr, args, err := r.sb.
		Select("item_id", "quantity::text", "needed_by_date", "source_type", "source_document").
		From("demand_records").
		Where(sq.Eq{"item_id": ids}).
		Where(sq.Lt{"needed_by_date": horizon.End}).
		OrderBy("item_id", "needed_by_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]entities.DemandRecord, 0)
	for rows.Next() {
		var (
			rec                 entities.DemandRecord
			itemID, qty, source string
		)
		if err := rows.Scan(&itemID, &qty, &rec.NeededByDate, &source, &rec.SourceDocument); err != nil {
			return nil, err
		}
		rec.ItemID = entities.ItemID(itemID)
		rec.NeededByDate = rec.NeededByDate.UTC()
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.SourceType, err = entities.ParseDemandSource(source); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *masterDataRepository) LoadSupply(ctx context.Context, records []*entities.SupplyRecord) error {
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		q := r.sb.Insert("supply_records").Columns("item_id", "quantity", "available_date", "kind", "reference")
		for _, rec := range records[start:end] {
			q = q.Values(string(rec.ItemID), rec.Quantity.String(), rec.AvailableDate, rec.Kind.String(), rec.Reference)
		}
		if err := r.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *masterDataRepository) LoadDemand(ctx context.Context, records []*entities.DemandRecord) error {
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		q := r.sb.Insert("demand_records").Columns("item_id", "quantity", "needed_by_date", "source_type", "source_document")
		for _, rec := range records[start:end] {
			q = q.Values(string(rec.ItemID), rec.Quantity.String(), rec.NeededByDate, rec.SourceType.String(), rec.SourceDocument)
		}
		if err := r.exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (r *masterDataRepository) exec(ctx context.Context, q sq.InsertBuilder) error {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, sqlStr, args...)
	return err
}
