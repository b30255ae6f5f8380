package entities

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Horizon is the planning window split into fixed-length buckets.
// Bucket p covers [Start + p*PeriodDays, Start + (p+1)*PeriodDays).
type Horizon struct {
	Start      time.Time
	End        time.Time
	PeriodDays int
}

// NewHorizon creates a validated Horizon; Start and End are truncated to UTC days
func NewHorizon(start, end time.Time, periodDays int) (Horizon, error) {
	if periodDays < 1 {
		return Horizon{}, fmt.Errorf("period days must be positive, got %d", periodDays)
	}
	if start.IsZero() || end.IsZero() {
		return Horizon{}, fmt.Errorf("horizon start and end are required")
	}

	start = truncateDay(start)
	end = truncateDay(end)
	if !end.After(start) {
		return Horizon{}, fmt.Errorf("horizon end %s must be after start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	return Horizon{Start: start, End: end, PeriodDays: periodDays}, nil
}

// Periods returns the number of buckets in the horizon
func (h Horizon) Periods() int {
	days := int(h.End.Sub(h.Start) / day)
	return ceilDiv(days, h.PeriodDays)
}

// PeriodOf returns the bucket index of t. Dates before Start yield a negative
// index and dates at or after End yield an index >= Periods().
func (h Horizon) PeriodOf(t time.Time) int {
	diff := truncateDay(t).Sub(h.Start)
	days := int(diff / day)
	if days < 0 {
		return -ceilDiv(-days, h.PeriodDays)
	}
	return days / h.PeriodDays
}

// AvailableAtStart reports whether supply dated t counts as on hand
func (h Horizon) AvailableAtStart(t time.Time) bool {
	return !truncateDay(t).After(h.Start)
}

// PeriodStart returns the first day of bucket p
func (h Horizon) PeriodStart(p int) time.Time {
	return h.Start.AddDate(0, 0, p*h.PeriodDays)
}

// LeadTimePeriods converts a lead time in days to whole buckets, rounding up
func (h Horizon) LeadTimePeriods(days int) int {
	if days <= 0 {
		return 0
	}
	return ceilDiv(days, h.PeriodDays)
}

func (h Horizon) String() string {
	return fmt.Sprintf("%s..%s/%dd",
		h.Start.Format(time.DateOnly), h.End.Format(time.DateOnly), h.PeriodDays)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
