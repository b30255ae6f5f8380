package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an MRP run
type RunStatus string

const (
	RunDraft         RunStatus = "draft"
	RunCalculating   RunStatus = "calculating"
	RunCalculated    RunStatus = "calculated"
	RunGeneratingPRs RunStatus = "generating_prs"
	RunPRsGenerated  RunStatus = "prs_generated"
	RunFailed        RunStatus = "failed"
)

// IsTerminal reports whether no further event is accepted
func (s RunStatus) IsTerminal() bool {
	return s == RunPRsGenerated || s == RunFailed
}

// ParseRunStatus validates a persisted status value
func ParseRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case RunDraft, RunCalculating, RunCalculated, RunGeneratingPRs, RunPRsGenerated, RunFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown run status: %s", s)
	}
}

// RunEvent drives a run from one status to the next
type RunEvent int

const (
	EventStartCalculation RunEvent = iota
	EventCalculationSucceeded
	EventCalculationFailed
	EventStartGeneration
	EventGenerationSucceeded
	EventGenerationFailed
)

// String method for RunEvent enum
func (e RunEvent) String() string {
	switch e {
	case EventStartCalculation:
		return "StartCalculation"
	case EventCalculationSucceeded:
		return "CalculationSucceeded"
	case EventCalculationFailed:
		return "CalculationFailed"
	case EventStartGeneration:
		return "StartGeneration"
	case EventGenerationSucceeded:
		return "GenerationSucceeded"
	case EventGenerationFailed:
		return "GenerationFailed"
	default:
		return "Unknown"
	}
}

// Effect is the side effect the controller performs after a transition
type Effect int

const (
	EffectNone Effect = iota
	EffectRunNetting
	EffectRunGeneration
	EffectRecordError
)

// String method for Effect enum
func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "None"
	case EffectRunNetting:
		return "RunNetting"
	case EffectRunGeneration:
		return "RunGeneration"
	case EffectRecordError:
		return "RecordError"
	default:
		return "Unknown"
	}
}

// Transition is the outcome of applying an event to a status
type Transition struct {
	From   RunStatus
	To     RunStatus
	Effect Effect
}

var transitions = map[RunStatus]map[RunEvent]Transition{
	RunDraft: {
		EventStartCalculation: {RunDraft, RunCalculating, EffectRunNetting},
	},
	RunCalculating: {
		EventCalculationSucceeded: {RunCalculating, RunCalculated, EffectNone},
		EventCalculationFailed:    {RunCalculating, RunFailed, EffectRecordError},
	},
	RunCalculated: {
		EventStartGeneration: {RunCalculated, RunGeneratingPRs, EffectRunGeneration},
	},
	RunGeneratingPRs: {
		EventGenerationSucceeded: {RunGeneratingPRs, RunPRsGenerated, EffectNone},
		EventGenerationFailed:    {RunGeneratingPRs, RunFailed, EffectRecordError},
	},
}

// ApplyEvent is the pure transition function of the run lifecycle
func ApplyEvent(from RunStatus, event RunEvent) (Transition, error) {
	t, ok := transitions[from][event]
	if !ok {
		return Transition{}, &InvalidTransitionError{From: from, Event: event}
	}
	return t, nil
}

// FailureReason classifies why a run ended in RunFailed
type FailureReason string

const (
	FailureNone      FailureReason = ""
	FailureError     FailureReason = "error"
	FailureCancelled FailureReason = "cancelled"
)

// MRPRun is one planning execution over a horizon
type MRPRun struct {
	ID                    uuid.UUID
	Horizon               Horizon
	Status                RunStatus
	CreatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	CalculationStartedAt  *time.Time
	CalculationFinishedAt *time.Time
	FailureReason         FailureReason
	LastError             string
	CancelRequested       bool
	RetryOf               *uuid.UUID
}

// NewMRPRun creates a draft run
func NewMRPRun(horizon Horizon, createdBy string, now time.Time) (*MRPRun, error) {
	if createdBy == "" {
		return nil, fmt.Errorf("created by cannot be empty")
	}
	if horizon.PeriodDays < 1 || !horizon.End.After(horizon.Start) {
		return nil, fmt.Errorf("invalid horizon %s", horizon)
	}

	return &MRPRun{
		ID:        uuid.New(),
		Horizon:   horizon,
		Status:    RunDraft,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// StatusChange is a compare-and-swap status update of a run
type StatusChange struct {
	Transition
	At            time.Time
	FailureReason FailureReason
	LastError     string
}

// Apply writes the change into run; the caller has already checked run.Status == c.From
func (c StatusChange) Apply(run *MRPRun) {
	at := c.At
	run.Status = c.To
	run.UpdatedAt = at

	switch {
	case c.To == RunCalculating:
		run.CalculationStartedAt = &at
		run.CancelRequested = false
	case c.From == RunCalculating:
		run.CalculationFinishedAt = &at
	}

	if c.To == RunFailed {
		run.FailureReason = c.FailureReason
		run.LastError = c.LastError
	}
}
