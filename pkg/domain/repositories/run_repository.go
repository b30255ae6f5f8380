package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// RunRepository owns runs and everything a run produces.
type RunRepository interface {
	CreateRun(ctx context.Context, run *entities.MRPRun) error
	// GetRun returns entities.ErrRunNotFound for unknown ids.
	GetRun(ctx context.Context, id uuid.UUID) (*entities.MRPRun, error)
	// UpdateStatus applies change only while the stored status equals change.From;
	// otherwise it returns entities.ErrInvalidRunState and stores nothing.
	UpdateStatus(ctx context.Context, id uuid.UUID, change entities.StatusChange) error
	// RequestCancel flags a calculating run; other statuses yield entities.ErrInvalidRunState.
	RequestCancel(ctx context.Context, id uuid.UUID) error
	CancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
	// ListInFlight returns calculating and generating_prs runs last updated before before.
	ListInFlight(ctx context.Context, before time.Time) ([]*entities.MRPRun, error)

	// ReplaceResults swaps the run's requirements and shortages in one step.
	// Readers observe either the previous set or the new one.
	ReplaceResults(
		ctx context.Context,
		id uuid.UUID,
		requirements []entities.MRPRequirement,
		shortages []entities.MRPShortage,
	) error
	GetRequirements(ctx context.Context, id uuid.UUID) ([]entities.MRPRequirement, error)
	GetShortages(ctx context.Context, id uuid.UUID) ([]entities.MRPShortage, error)
}

// RequisitionLedger records which (run, item) pairs already produced a line.
type RequisitionLedger interface {
	// ClaimKeys stores all keys or none; entities.ErrAlreadyGenerated if any exists.
	ClaimKeys(ctx context.Context, keys []entities.RequisitionKey) error
	// RecordRequisition links claimed keys to the created requisition.
	RecordRequisition(ctx context.Context, req entities.PurchaseRequisition) error
	GetRequisitions(ctx context.Context, runID uuid.UUID) ([]entities.PurchaseRequisition, error)
}
