package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

type outboxLine struct {
	ItemID        string `json:"item_id"`
	Quantity      string `json:"quantity"`
	NeededBy      string `json:"needed_by"`
	UnitOfMeasure string `json:"unit_of_measure"`
}

type outboxPayload struct {
	RequisitionID string       `json:"requisition_id"`
	RunID         string       `json:"run_id"`
	GroupKey      string       `json:"group_key"`
	CreatedBy     string       `json:"created_by"`
	Lines         []outboxLine `json:"lines"`
}

// requisitionOutbox hands requisitions to procurement through an outbox table.
// Creating the same requisition twice returns the original identifier.
type requisitionOutbox struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

func NewRequisitionOutbox(pool *pgxpool.Pool) *requisitionOutbox {
	return &requisitionOutbox{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var _ repositories.RequisitionSink = (*requisitionOutbox)(nil)

func (o *requisitionOutbox) Create(ctx context.Context, req entities.PurchaseRequisition) (string, error) {
	payload := outboxPayload{
		RequisitionID: req.ID.String(),
		RunID:         req.RunID.String(),
		GroupKey:      req.GroupKey,
		CreatedBy:     req.CreatedBy,
		Lines:         make([]outboxLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		payload.Lines = append(payload.Lines, outboxLine{
			ItemID:        string(l.ItemID),
			Quantity:      l.Quantity.String(),
			NeededBy:      l.NeededBy.Format("2006-01-02"),
			UnitOfMeasure: l.UnitOfMeasure,
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sqlStr, args, err := o.sb.
		Insert("requisition_outbox").
		Columns("requisition_id", "payload").
		Values(req.ID, string(raw)).
		Suffix("ON CONFLICT (requisition_id) DO UPDATE SET requisition_id = EXCLUDED.requisition_id RETURNING id").
		ToSql()
	if err != nil {
		return "", err
	}

	var id int64
	if err := o.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		return "", err
	}
	return fmt.Sprintf("PR-%06d", id), nil
}
