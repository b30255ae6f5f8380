package dto

import (
	"time"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// RunResult is returned by a successful calculation
type RunResult struct {
	Run              *entities.MRPRun
	RequirementCount int
	ShortageCount    int
	Levels           int
	Duration         time.Duration
}

// GenerationResult is returned by a successful requisition generation
type GenerationResult struct {
	Run          *entities.MRPRun
	Requisitions []entities.PurchaseRequisition
	LineCount    int
}
