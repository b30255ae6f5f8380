package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/repositories"
)

type runResults struct {
	requirements []entities.MRPRequirement
	shortages    []entities.MRPShortage
}

// RunRepository stores runs, their results and the requisition ledger.
// Results are swapped under the write lock so readers never see a mix.
type RunRepository struct {
	mu           sync.RWMutex
	runs         map[uuid.UUID]entities.MRPRun
	results      map[uuid.UUID]runResults
	claimed      map[entities.RequisitionKey]struct{}
	requisitions map[uuid.UUID][]entities.PurchaseRequisition
}

func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs:         make(map[uuid.UUID]entities.MRPRun),
		results:      make(map[uuid.UUID]runResults),
		claimed:      make(map[entities.RequisitionKey]struct{}),
		requisitions: make(map[uuid.UUID][]entities.PurchaseRequisition),
	}
}

var (
	_ repositories.RunRepository     = (*RunRepository)(nil)
	_ repositories.RequisitionLedger = (*RunRepository)(nil)
)

func (r *RunRepository) CreateRun(_ context.Context, run *entities.MRPRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = *run
	return nil
}

func (r *RunRepository) GetRun(_ context.Context, id uuid.UUID) (*entities.MRPRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, entities.ErrRunNotFound
	}
	return &run, nil
}

func (r *RunRepository) UpdateStatus(_ context.Context, id uuid.UUID, change entities.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return entities.ErrRunNotFound
	}
	if run.Status != change.From {
		return fmt.Errorf("%w: run is %s, expected %s", entities.ErrInvalidRunState, run.Status, change.From)
	}

	change.Apply(&run)
	r.runs[id] = run
	return nil
}

func (r *RunRepository) RequestCancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return entities.ErrRunNotFound
	}
	if run.Status != entities.RunCalculating {
		return entities.ErrInvalidRunState
	}
	run.CancelRequested = true
	r.runs[id] = run
	return nil
}

func (r *RunRepository) CancelRequested(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return false, entities.ErrRunNotFound
	}
	return run.CancelRequested, nil
}

func (r *RunRepository) ListInFlight(_ context.Context, before time.Time) ([]*entities.MRPRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*entities.MRPRun, 0)
	for _, run := range r.runs {
		if run.Status != entities.RunCalculating && run.Status != entities.RunGeneratingPRs {
			continue
		}
		if !run.UpdatedAt.Before(before) {
			continue
		}
		run := run
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].UpdatedAt.Before(runs[j].UpdatedAt) })
	return runs, nil
}

func (r *RunRepository) ReplaceResults(
	_ context.Context,
	id uuid.UUID,
	requirements []entities.MRPRequirement,
	shortages []entities.MRPShortage,
) error {
	res := runResults{
		requirements: append([]entities.MRPRequirement(nil), requirements...),
		shortages:    append([]entities.MRPShortage(nil), shortages...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return entities.ErrRunNotFound
	}
	r.results[id] = res
	return nil
}

func (r *RunRepository) GetRequirements(_ context.Context, id uuid.UUID) ([]entities.MRPRequirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]entities.MRPRequirement{}, r.results[id].requirements...), nil
}

func (r *RunRepository) GetShortages(_ context.Context, id uuid.UUID) ([]entities.MRPShortage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]entities.MRPShortage{}, r.results[id].shortages...), nil
}

func (r *RunRepository) ClaimKeys(_ context.Context, keys []entities.RequisitionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		if _, ok := r.claimed[k]; ok {
			return entities.ErrAlreadyGenerated
		}
	}
	for _, k := range keys {
		r.claimed[k] = struct{}{}
	}
	return nil
}

func (r *RunRepository) RecordRequisition(_ context.Context, req entities.PurchaseRequisition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requisitions[req.RunID] = append(r.requisitions[req.RunID], req)
	return nil
}

func (r *RunRepository) GetRequisitions(_ context.Context, runID uuid.UUID) ([]entities.PurchaseRequisition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reqs := append([]entities.PurchaseRequisition{}, r.requisitions[runID]...)
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].GroupKey < reqs[j].GroupKey })
	return reqs, nil
}
