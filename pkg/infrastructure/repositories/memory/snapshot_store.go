package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

// SnapshotStore holds supply and demand records in memory
type SnapshotStore struct {
	mu     sync.RWMutex
	supply []entities.SupplyRecord
	demand []entities.DemandRecord
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

var (
	_ repositories.SnapshotProvider = (*SnapshotStore)(nil)
	_ repositories.SnapshotLoader   = (*SnapshotStore)(nil)
)

func (s *SnapshotStore) LoadSupply(_ context.Context, records []*entities.SupplyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			return fmt.Errorf("nil supply record")
		}
		s.supply = append(s.supply, *rec)
	}
	return nil
}

func (s *SnapshotStore) LoadDemand(_ context.Context, records []*entities.DemandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			return fmt.Errorf("nil demand record")
		}
		s.demand = append(s.demand, *rec)
	}
	return nil
}

func (s *SnapshotStore) DemandedItems(_ context.Context, horizon entities.Horizon) ([]entities.ItemID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]entities.ItemID, 0, len(s.demand))
	for _, d := range s.demand {
		if d.NeededByDate.Before(horizon.End) {
			ids = append(ids, d.ItemID)
		}
	}

	ids = lo.Uniq(ids)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *SnapshotStore) SupplyAndDemand(
	_ context.Context,
	itemIDs []entities.ItemID,
	horizon entities.Horizon,
) (*entities.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := lo.SliceToMap(itemIDs, func(id entities.ItemID) (entities.ItemID, struct{}) {
		return id, struct{}{}
	})

	snapshot := &entities.Snapshot{}
	for _, rec := range s.supply {
		if _, ok := wanted[rec.ItemID]; ok && rec.AvailableDate.Before(horizon.End) {
			snapshot.Supply = append(snapshot.Supply, rec)
		}
	}
	for _, rec := range s.demand {
		if _, ok := wanted[rec.ItemID]; ok && rec.NeededByDate.Before(horizon.End) {
			snapshot.Demand = append(snapshot.Demand, rec)
		}
	}
	return snapshot, nil
}
