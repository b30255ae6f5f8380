package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// RequisitionSink hands requisitions to procurement and returns its identifier
type RequisitionSink interface {
	Create(ctx context.Context, req entities.PurchaseRequisition) (string, error)
}

// Lease is a held run lock
type Lease interface {
	Release(ctx context.Context) error
}

// RunLocker grants per-run mutual exclusion.
// TryLock never waits: a held lock yields entities.ErrRunBusy.
type RunLocker interface {
	TryLock(ctx context.Context, runID uuid.UUID) (Lease, error)
}
