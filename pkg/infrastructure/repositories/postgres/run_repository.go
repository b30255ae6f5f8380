package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// insertChunk bounds rows per multi-row INSERT to stay under the parameter limit
const insertChunk = 500

var runColumns = []string{
	"id", "horizon_start", "horizon_end", "period_days", "status", "created_by",
	"created_at", "updated_at", "calculation_started_at", "calculation_finished_at",
	"failure_reason", "last_error", "cancel_requested", "retry_of",
}

type runRepository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

// NewRunRepository returns a store that is both the run repository and the requisition ledger
func NewRunRepository(pool *pgxpool.Pool) *runRepository {
	return &runRepository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var (
	_ repositories.RunRepository     = (*runRepository)(nil)
	_ repositories.RequisitionLedger = (*runRepository)(nil)
)

func (r *runRepository) CreateRun(ctx context.Context, run *entities.MRPRun) error {
	q := r.sb.
		Insert("mrp_runs").
		Columns(runColumns...).
		Values(
			run.ID, run.Horizon.Start, run.Horizon.End, run.Horizon.PeriodDays, string(run.Status), run.CreatedBy,
			run.CreatedAt, run.UpdatedAt, run.CalculationStartedAt, run.CalculationFinishedAt,
			string(run.FailureReason), run.LastError, run.CancelRequested, run.RetryOf,
		)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, sqlStr, args...)
	return err
}

func (r *runRepository) GetRun(ctx context.Context, id uuid.UUID) (*entities.MRPRun, error) {
	q := r.sb.
		Select(runColumns...).
		From("mrp_runs").
		Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	run, err := scanRun(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

func (r *runRepository) ListInFlight(ctx context.Context, before time.Time) ([]*entities.MRPRun, error) {
	sqlStr, args, err := r.sb.
		Select(runColumns...).
		From("mrp_runs").
		Where(sq.Eq{"status": []string{string(entities.RunCalculating), string(entities.RunGeneratingPRs)}}).
		Where(sq.Lt{"updated_at": before}).
		OrderBy("updated_at").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*entities.MRPRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// scanRun reads one row selected with runColumns
func scanRun(row pgx.Row) (*entities.MRPRun, error) {
	var (
		run           entities.MRPRun
		status        string
		failureReason string
	)
	err := row.Scan(
		&run.ID,
		&run.Horizon.Start,
		&run.Horizon.End,
		&run.Horizon.PeriodDays,
		&status,
		&run.CreatedBy,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CalculationStartedAt,
		&run.CalculationFinishedAt,
		&failureReason,
		&run.LastError,
		&run.CancelRequested,
		&run.RetryOf,
	)
	if err != nil {
		return nil, err
	}

	if run.Status, err = entities.ParseRunStatus(status); err != nil {
		return nil, err
	}
	run.FailureReason = entities.FailureReason(failureReason)
	run.Horizon.Start = run.Horizon.Start.UTC()
	run.Horizon.End = run.Horizon.End.UTC()

	return &run, nil
}

func (r *runRepository) UpdateStatus(ctx context.Context, id uuid.UUID, change entities.StatusChange) error {
	set := sq.Eq{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	switch {
	case change.To == entities.RunCalculating:
		set["calculation_started_at"] = change.At
		set["cancel_requested"] = false
	case change.From == entities.RunCalculating:
		set["calculation_finished_at"] = change.At
	}
	if change.To == entities.RunFailed {
		set["failure_reason"] = string(change.FailureReason)
		set["last_error"] = change.LastError
	}

	q := r.sb.
		Update("mrp_runs").
		SetMap(set).
		Where(sq.Eq{"id": id, "status": string(change.From)})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id, change.From)
	}
	return nil
}

func (r *runRepository) RequestCancel(ctx context.Context, id uuid.UUID) error {
	q := r.sb.
		Update("mrp_runs").
		Set("cancel_requested", true).
		Where(sq.Eq{"id": id, "status": string(entities.RunCalculating)})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}

	ct, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id, entities.RunCalculating)
	}
	return nil
}

func (r *runRepository) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	sqlStr, args, err := r.sb.
		Select("cancel_requested").
		From("mrp_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, err
	}

	var requested bool
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&requested); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, entities.ErrRunNotFound
		}
		return false, err
	}
	return requested, nil
}

// conflictOrMissing explains a zero-row conditional update
func (r *runRepository) conflictOrMissing(ctx context.Context, id uuid.UUID, expected entities.RunStatus) error {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: run is %s, expected %s", entities.ErrInvalidRunState, run.Status, expected)
}

func (r *runRepository) ReplaceResults(
	ctx context.Context,
	id uuid.UUID,
	requirements []entities.MRPRequirement,
	shortages []entities.MRPShortage,
) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"mrp_requirements", "mrp_shortages"} {
			sqlStr, args, err := r.sb.Delete(table).Where(sq.Eq{"run_id": id}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for start := 0; start < len(requirements); start += insertChunk {
			end := min(start+insertChunk, len(requirements))
			q := r.sb.Insert("mrp_requirements").Columns(
				"run_id", "item_id", "period", "period_start", "level", "gross_requirement",
				"scheduled_receipts", "on_hand", "net_requirement", "past_due",
			)
			for _, req := range requirements[start:end] {
				q = q.Values(
					id, string(req.ItemID), req.Period, req.PeriodStart, req.Level, req.GrossRequirement.String(),
					req.ScheduledReceipts.String(), req.OnHand.String(), req.NetRequirement.String(), req.PastDue,
				)
			}
			if err := execInsert(ctx, tx, q); err != nil {
				return fmt.Errorf("insert requirements: %w", err)
			}
		}

		for start := 0; start < len(shortages); start += insertChunk {
			end := min(start+insertChunk, len(shortages))
			q := r.sb.Insert("mrp_shortages").Columns("run_id", "item_id", "quantity", "needed_by_date")
			for _, s := range shortages[start:end] {
				q = q.Values(id, string(s.ItemID), s.Quantity.String(), s.NeededByDate)
			}
			if err := execInsert(ctx, tx, q); err != nil {
				return fmt.Errorf("insert shortages: %w", err)
			}
		}

		return nil
	})
}

func (r *runRepository) GetRequirements(ctx context.Context, id uuid.UUID) ([]entities.MRPRequirement, error) {
	sqlStr, args, err := r.sb.
		Select(
			"item_id", "period", "period_start", "level", "gross_requirement::text",
			"scheduled_receipts::text", "on_hand::text", "net_requirement::text", "past_due",
		).
		From("mrp_requirements").
		Where(sq.Eq{"run_id": id}).
		OrderBy("level", "item_id", "period").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]entities.MRPRequirement, 0)
	for rows.Next() {
		var (
			req                            entities.MRPRequirement
			itemID                         string
			gross, receipts, onHand, netRq string
		)
		if err := rows.Scan(&itemID, &req.Period, &req.PeriodStart, &req.Level,
			&gross, &receipts, &onHand, &netRq, &req.PastDue); err != nil {
			return nil, err
		}

		req.RunID = id
		req.ItemID = entities.ItemID(itemID)
		req.PeriodStart = req.PeriodStart.UTC()
		if req.GrossRequirement, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		if req.ScheduledReceipts, err = decimal.NewFromString(receipts); err != nil {
			return nil, err
		}
		if req.OnHand, err = decimal.NewFromString(onHand); err != nil {
			return nil, err
		}
		if req.NetRequirement, err = decimal.NewFromString(netRq); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (r *runRepository) GetShortages(ctx context.Context, id uuid.UUID) ([]entities.MRPShortage, error) {
	sqlStr, args, err := r.sb.
		Select("item_id", "quantity::text", "needed_by_date").
		From("mrp_shortages").
		Where(sq.Eq{"run_id": id}).
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

	shortages := make([]entities.MRPShortage, 0)
	for rows.Next() {
		var (
			s      entities.MRPShortage
			itemID string
			qty    string
		)
		if err := rows.Scan(&itemID, &qty, &s.NeededByDate); err != nil {
			return nil, err
		}
		s.RunID = id
		s.ItemID = entities.ItemID(itemID)
		s.NeededByDate = s.NeededByDate.UTC()
		if s.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		shortages = append(shortages, s)
	}
	return shortages, rows.Err()
}

// ClaimKeys inserts every key or none: a conflicting key rolls the batch back
func (r *runRepository) ClaimKeys(ctx context.Context, keys []entities.RequisitionKey) error {
	if len(keys) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := r.sb.Insert("requisition_keys").Columns("run_id", "item_id")
		for _, k := range keys {
			q = q.Values(k.RunID, string(k.ItemID))
		}
		sqlStr, args, err := q.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		if ct.RowsAffected() != int64(len(keys)) {
			return entities.ErrAlreadyGenerated
		}
		return nil
	})
}

func (r *runRepository) RecordRequisition(ctx context.Context, req entities.PurchaseRequisition) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		header := r.sb.
			Insert("purchase_requisitions").
			Columns("id", "run_id", "group_key", "created_by", "created_at", "external_id").
			Values(req.ID, req.RunID, req.GroupKey, req.CreatedBy, req.CreatedAt, req.ExternalID)
		if err := execInsert(ctx, tx, header); err != nil {
			return fmt.Errorf("insert requisition: %w", err)
		}

		if len(req.Lines) == 0 {
			return nil
		}
		lines := r.sb.Insert("purchase_requisition_lines").Columns(
			"id", "requisition_id", "run_id", "item_id", "quantity", "needed_by", "unit_of_measure",
		)
		for _, l := range req.Lines {
			lines = lines.Values(l.ID, req.ID, l.RunID, string(l.ItemID), l.Quantity.String(), l.NeededBy, l.UnitOfMeasure)
		}
		if err := execInsert(ctx, tx, lines); err != nil {
			return fmt.Errorf("insert requisition lines: %w", err)
		}
		return nil
	})
}

func (r *runRepository) GetRequisitions(ctx context.Context, runID uuid.UUID) ([]entities.PurchaseRequisition, error) {
	sqlStr, args, err := r.sb.
		Select("id", "group_key", "created_by", "created_at", "external_id").
		From("purchase_requisitions").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("group_key", "id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	reqs := make([]entities.PurchaseRequisition, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		req := entities.PurchaseRequisition{RunID: runID}
		if err := rows.Scan(&req.ID, &req.GroupKey, &req.CreatedBy, &req.CreatedAt, &req.ExternalID); err != nil {
			rows.Close()
			return nil, err
		}
		index[req.ID] = len(reqs)
		reqs = append(reqs, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return reqs, nil
	}

	sqlStr, args, err = r.sb.
		Select("id", "requisition_id", "item_id", "quantity::text", "needed_by", "unit_of_measure").
		From("purchase_requisition_lines").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("item_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	lineRows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			line          entities.PurchaseRequisitionLine
			requisitionID uuid.UUID
			itemID, qty   string
			neededBy      time.Time
		)
		if err := lineRows.Scan(&line.ID, &requisitionID, &itemID, &qty, &neededBy, &line.UnitOfMeasure); err != nil {
			return nil, err
		}
		line.RunID = runID
		line.ItemID = entities.ItemID(itemID)
		line.NeededBy = neededBy.UTC()
		if line.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}

		if i, ok := index[requisitionID]; ok {
			reqs[i].Lines = append(reqs[i].Lines, line)
		}
	}
	return reqs, lineRows.Err()
}

func execInsert(ctx context.Context, tx pgx.Tx, q sq.InsertBuilder) error {
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, sqlStr, args...)
	return err
}
