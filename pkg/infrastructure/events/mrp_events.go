package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunCreatedEvent            = "run.created"
	RunCalculationStartedEvent = "run.calculation_started"
	RunCalculatedEvent         = "run.calculated"
	RunFailedEvent             = "run.failed"
	RunCancelRequestedEvent    = "run.cancel_requested"
	RequisitionsGeneratedEvent = "requisitions.generated"
)

// RunEventTypes lists every run lifecycle event type
var RunEventTypes = []string{
	RunCreatedEvent,
	RunCalculationStartedEvent,
	RunCalculatedEvent,
	RunFailedEvent,
	RunCancelRequestedEvent,
	RequisitionsGeneratedEvent,
}

// RunStream is the stream id of a run's events
func RunStream(runID uuid.UUID) string {
	return "mrp_run:" + runID.String()
}

type RunCreated struct {
	RunID     uuid.UUID  `json:"run_id"`
	CreatedBy string     `json:"created_by"`
	Start     time.Time  `json:"horizon_start"`
	End       time.Time  `json:"horizon_end"`
	RetryOf   *uuid.UUID `json:"retry_of,omitempty"`
}

type RunCalculationStarted struct {
	RunID   uuid.UUID `json:"run_id"`
	ActorID string    `json:"actor_id"`
}

type RunCalculated struct {
	RunID            uuid.UUID     `json:"run_id"`
	RequirementCount int           `json:"requirement_count"`
	ShortageCount    int           `json:"shortage_count"`
	Levels           int           `json:"levels"`
	Duration         time.Duration `json:"duration_ns"`
}

type RunFailed struct {
	RunID  uuid.UUID `json:"run_id"`
	From   string    `json:"from_status"`
	Reason string    `json:"reason"`
	Error  string    `json:"error"`
}

type RunCancelRequested struct {
	RunID   uuid.UUID `json:"run_id"`
	ActorID string    `json:"actor_id"`
}

type RequisitionsGenerated struct {
	RunID          uuid.UUID `json:"run_id"`
	ActorID        string    `json:"actor_id"`
	RequisitionIDs []string  `json:"requisition_ids"`
	LineCount      int       `json:"line_count"`
}
