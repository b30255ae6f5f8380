package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mrp-planner/pkg/application/dto"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

type CreateRunRequest struct {
	HorizonStart string `json:"horizon_start"`
	HorizonEnd   string `json:"horizon_end"`
	PeriodDays   int    `json:"period_days,omitempty"`
}

type Run struct {
	ID                    uuid.UUID  `json:"id"`
	Status                string     `json:"status"`
	HorizonStart          string     `json:"horizon_start"`
	HorizonEnd            string     `json:"horizon_end"`
	PeriodDays            int        `json:"period_days"`
	CreatedBy             string     `json:"created_by"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	CalculationStartedAt  *time.Time `json:"calculation_started_at,omitempty"`
	CalculationFinishedAt *time.Time `json:"calculation_finished_at,omitempty"`
	FailureReason         string     `json:"failure_reason,omitempty"`
	LastError             string     `json:"last_error,omitempty"`
	CancelRequested       bool       `json:"cancel_requested"`
	RetryOf               *uuid.UUID `json:"retry_of,omitempty"`
}

type CalculateResponse struct {
	Run              Run   `json:"run"`
	RequirementCount int   `json:"requirement_count"`
	ShortageCount    int   `json:"shortage_count"`
	Levels           int   `json:"levels"`
	DurationMS       int64 `json:"duration_ms"`
}

type Requirement struct {
	ItemID            string          `json:"item_id"`
	Period            int             `json:"period"`
	PeriodStart       string          `json:"period_start"`
	Level             int             `json:"level"`
	GrossRequirement  decimal.Decimal `json:"gross_requirement"`
	ScheduledReceipts decimal.Decimal `json:"scheduled_receipts"`
	OnHand            decimal.Decimal `json:"on_hand"`
	NetRequirement    decimal.Decimal `json:"net_requirement"`
	PastDue           bool            `json:"past_due,omitempty"`
}

type Shortage struct {
	ItemID       string          `json:"item_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	NeededByDate string          `json:"needed_by_date"`
}

type RequisitionLine struct {
	ID            uuid.UUID       `json:"id"`
	ItemID        string          `json:"item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	NeededBy      string          `json:"needed_by"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

type Requisition struct {
	ID         uuid.UUID         `json:"id"`
	ExternalID string            `json:"external_id"`
	GroupKey   string            `json:"group_key"`
	CreatedBy  string            `json:"created_by"`
	CreatedAt  time.Time         `json:"created_at"`
	Lines      []RequisitionLine `json:"lines"`
}

type GenerateResponse struct {
	Run          Run           `json:"run"`
	Requisitions []Requisition `json:"requisitions"`
	LineCount    int           `json:"line_count"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func runToResponse(run *entities.MRPRun) Run {
	return Run{
		ID:                    run.ID,
		Status:                string(run.Status),
		HorizonStart:          run.Horizon.Start.Format(time.DateOnly),
		HorizonEnd:            run.Horizon.End.Format(time.DateOnly),
		PeriodDays:            run.Horizon.PeriodDays,
		CreatedBy:             run.CreatedBy,
		CreatedAt:             run.CreatedAt,
		UpdatedAt:             run.UpdatedAt,
		CalculationStartedAt:  run.CalculationStartedAt,
		CalculationFinishedAt: run.CalculationFinishedAt,
		FailureReason:         string(run.FailureReason),
		LastError:             run.LastError,
		CancelRequested:       run.CancelRequested,
		RetryOf:               run.RetryOf,
	}
}

func requirementsToResponse(reqs []entities.MRPRequirement) []Requirement {
	out := make([]Requirement, len(reqs))
	for i, r := range reqs {
		out[i] = Requirement{
			ItemID:            string(r.ItemID),
			Period:            r.Period,
			PeriodStart:       r.PeriodStart.Format(time.DateOnly),
			Level:             r.Level,
			GrossRequirement:  r.GrossRequirement,
			ScheduledReceipts: r.ScheduledReceipts,
			OnHand:            r.OnHand,
			NetRequirement:    r.NetRequirement,
			PastDue:           r.PastDue,
		}
	}
	return out
}

func shortagesToResponse(shortages []entities.MRPShortage) []Shortage {
	out := make([]Shortage, len(shortages))
	for i, s := range shortages {
		out[i] = Shortage{
			ItemID:       string(s.ItemID),
			Quantity:     s.Quantity,
			NeededByDate: s.NeededByDate.Format(time.DateOnly),
		}
	}
	return out
}

func generationToResponse(res *dto.GenerationResult) GenerateResponse {
	reqs := make([]Requisition, len(res.Requisitions))
	for i, r := range res.Requisitions {
		lines := make([]RequisitionLine, len(r.Lines))
		for j, l := range r.Lines {
			lines[j] = RequisitionLine{
				ID:            l.ID,
				ItemID:        string(l.ItemID),
				Quantity:      l.Quantity,
				NeededBy:      l.NeededBy.Format(time.DateOnly),
				UnitOfMeasure: l.UnitOfMeasure,
			}
		}
		reqs[i] = Requisition{
			ID:         r.ID,
			ExternalID: r.ExternalID,
			GroupKey:   r.GroupKey,
			CreatedBy:  r.CreatedBy,
			CreatedAt:  r.CreatedAt,
			Lines:      lines,
		}
	}
	return GenerateResponse{Run: runToResponse(res.Run), Requisitions: reqs, LineCount: res.LineCount}
}
