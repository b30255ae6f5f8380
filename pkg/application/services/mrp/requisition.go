package mrp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// RequisitionGenerator converts a run's shortages into purchase requisitions.
// Every shortage yields exactly one line and a run yields at most one set.
type RequisitionGenerator struct {
	items   repositories.ItemRepository
	ledger  repositories.RequisitionLedger
	sink    repositories.RequisitionSink
	grouper Grouper
	now     func() time.Time
}

func NewRequisitionGenerator(
	items repositories.ItemRepository,
	ledger repositories.RequisitionLedger,
	sink repositories.RequisitionSink,
	grouper Grouper,
) *RequisitionGenerator {
	if grouper == nil {
		grouper = NewSupplierGrouper(items)
	}
	return &RequisitionGenerator{
		items:   items,
		ledger:  ledger,
		sink:    sink,
		grouper: grouper,
		now:     time.Now,
	}
}

func (g *RequisitionGenerator) Generate(
	ctx context.Context,
	runID uuid.UUID,
	actorID string,
	shortages []entities.MRPShortage,
) ([]entities.PurchaseRequisition, error) {
	if len(shortages) == 0 {
		return nil, entities.ErrNoShortages
	}

	lines := make([]entities.PurchaseRequisitionLine, 0, len(shortages))
	keys := make([]entities.RequisitionKey, 0, len(shortages))
	seen := make(map[entities.ItemID]struct{}, len(shortages))
	for _, s := range shortages {
		if s.RunID != runID {
			return nil, fmt.Errorf("%w: shortage for %s belongs to run %s", entities.ErrValidation, s.ItemID, s.RunID)
		}
		if _, dup := seen[s.ItemID]; dup {
			return nil, fmt.Errorf("%w: duplicate shortage for %s", entities.ErrValidation, s.ItemID)
		}
		seen[s.ItemID] = struct{}{}

		item, err := g.items.GetItem(ctx, s.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", s.ItemID, err)
		}
		line, err := entities.NewRequisitionLine(s, item.UnitOfMeasure)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", entities.ErrValidation, err)
		}
		lines = append(lines, *line)
		keys = append(keys, line.Key())
	}

	groups, err := g.grouper.Group(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("group lines: %w", err)
	}
	if err := checkGroups(lines, groups); err != nil {
		return nil, err
	}

	if err := g.ledger.ClaimKeys(ctx, keys); err != nil {
		return nil, err
	}

	createdAt := g.now().UTC()
	requisitions := make([]entities.PurchaseRequisition, 0, len(groups))
	for _, group := range groups {
		req := entities.PurchaseRequisition{
			ID:        uuid.New(),
			RunID:     runID,
			GroupKey:  group.Key,
			CreatedBy: actorID,
			CreatedAt: createdAt,
			Lines:     group.Lines,
		}

		externalID, err := g.sink.Create(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("create requisition %s: %w", group.Key, err)
		}
		req.ExternalID = externalID

		if err := g.ledger.RecordRequisition(ctx, req); err != nil {
			return nil, fmt.Errorf("record requisition %s: %w", group.Key, err)
		}
		requisitions = append(requisitions, req)
	}

	return requisitions, nil
}

// checkGroups rejects a grouping that drops, duplicates or invents lines
func checkGroups(lines []entities.PurchaseRequisitionLine, groups []LineGroup) error {
	want := make(map[uuid.UUID]bool, len(lines))
	for _, l := range lines {
		want[l.ID] = false
	}

	for _, group := range groups {
		for _, l := range group.Lines {
			placed, ok := want[l.ID]
			switch {
			case !ok:
				return fmt.Errorf("grouping produced unknown line for %s", l.ItemID)
			case placed:
				return fmt.Errorf("grouping duplicated line for %s", l.ItemID)
			}
			want[l.ID] = true
		}
	}

	for _, l := range lines {
		if !want[l.ID] {
			return fmt.Errorf("grouping dropped line for %s", l.ItemID)
		}
	}
	return nil
}
