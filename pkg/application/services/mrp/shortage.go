package mrp

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// ShortageScope selects which buckets count towards a shortage
type ShortageScope string

const (
	// ScopeLeadTime counts buckets an order released now cannot reach in time
	ScopeLeadTime ShortageScope = "lead_time"
	// ScopeHorizon counts every bucket of the horizon
	ScopeHorizon ShortageScope = "horizon"
)

// ParseShortageScope validates a configured scope; empty means ScopeLeadTime
func ParseShortageScope(s string) (ShortageScope, error) {
	switch ShortageScope(s) {
	case "", ScopeLeadTime:
		return ScopeLeadTime, nil
	case ScopeHorizon:
		return ScopeHorizon, nil
	default:
		return "", fmt.Errorf("unknown shortage scope: %s", s)
	}
}

// ShortageDetector aggregates net requirements into one shortage per item
type ShortageDetector struct {
	scope ShortageScope
}

func NewShortageDetector(scope ShortageScope) *ShortageDetector {
	if scope == "" {
		scope = ScopeLeadTime
	}
	return &ShortageDetector{scope: scope}
}

type shortfall struct {
	total    decimal.Decimal
	neededBy time.Time
}

// Detect walks each item's buckets in order. Net requirements within the
// cutoff accumulate and are never offset by later surplus. Items whose total
// is zero produce no row. Output is sorted by ItemID.
func (d *ShortageDetector) Detect(
	runID uuid.UUID,
	horizon entities.Horizon,
	requirements []entities.MRPRequirement,
	items map[entities.ItemID]*entities.Item,
) []entities.MRPShortage {
	rows := append([]entities.MRPRequirement(nil), requirements...)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ItemID != rows[j].ItemID {
			return rows[i].ItemID < rows[j].ItemID
		}
		return rows[i].Period < rows[j].Period
	})

	totals := make(map[entities.ItemID]*shortfall)
	order := make([]entities.ItemID, 0)
	for _, r := range rows {
		if !r.NetRequirement.IsPositive() || r.Period > d.cutoff(horizon, items[r.ItemID]) {
			continue
		}
		s, ok := totals[r.ItemID]
		if !ok {
			s = &shortfall{neededBy: r.PeriodStart}
			totals[r.ItemID] = s
			order = append(order, r.ItemID)
		}
		s.total = s.total.Add(r.NetRequirement)
	}

	shortages := make([]entities.MRPShortage, 0, len(order))
	for _, id := range order {
		s := totals[id]
		if !s.total.IsPositive() {
			continue
		}
		shortages = append(shortages, entities.MRPShortage{
			RunID:        runID,
			ItemID:       id,
			Quantity:     s.total,
			NeededByDate: s.neededBy,
		})
	}
	return shortages
}

// cutoff is the last bucket counted for item. Bucket 0 is the one in
// progress: an order raised now is released at the start of bucket 1 and
// received at the end of bucket 1+lead time, too late for demand due by then.
func (d *ShortageDetector) cutoff(horizon entities.Horizon, item *entities.Item) int {
	if d.scope == ScopeHorizon {
		return horizon.Periods()
	}
	if item == nil {
		return 1
	}
	return 1 + horizon.LeadTimePeriods(item.LeadTimeDays)
}
