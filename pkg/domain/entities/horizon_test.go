package entities

import (
	"testing"
	"time"
)

func mustDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestHorizon_Buckets(t *testing.T) {
	h, err := NewHorizon(mustDate("2025-01-06"), mustDate("2025-02-03"), 7)
	if err != nil {
		t.Fatalf("NewHorizon failed: %v", err)
	}

	if got := h.Periods(); got != 4 {
		t.Errorf("Expected 4 periods, got %d", got)
	}

	testCases := []struct {
		date   string
		period int
	}{
		{"2025-01-06", 0},
		{"2025-01-12", 0},
		{"2025-01-13", 1},
		{"2025-02-02", 3},
		{"2025-02-03", 4},
		{"2025-01-05", -1},
		{"2024-12-29", -2},
	}

	for _, tc := range testCases {
		t.Run(tc.date, func(t *testing.T) {
			if got := h.PeriodOf(mustDate(tc.date)); got != tc.period {
				t.Errorf("PeriodOf(%s) = %d, want %d", tc.date, got, tc.period)
			}
		})
	}

	if got := h.PeriodStart(2); !got.Equal(mustDate("2025-01-20")) {
		t.Errorf("PeriodStart(2) = %s", got)
	}
}

func TestHorizon_LeadTimePeriods(t *testing.T) {
	h, err := NewHorizon(mustDate("2025-01-06"), mustDate("2025-06-30"), 7)
	if err != nil {
		t.Fatalf("NewHorizon failed: %v", err)
	}

	cases := map[int]int{0: 0, 1: 1, 7: 1, 8: 2, 14: 2, 30: 5}
	for days, want := range cases {
		if got := h.LeadTimePeriods(days); got != want {
			t.Errorf("LeadTimePeriods(%d) = %d, want %d", days, got, want)
		}
	}
}

func TestHorizon_Validation(t *testing.T) {
	start := mustDate("2025-01-06")

	if _, err := NewHorizon(start, start, 7); err == nil {
		t.Error("Expected error for empty horizon")
	}
	if _, err := NewHorizon(start, start.AddDate(0, 1, 0), 0); err == nil {
		t.Error("Expected error for zero period length")
	}

	h, err := NewHorizon(start.Add(15*time.Hour), start.AddDate(0, 0, 10), 1)
	if err != nil {
		t.Fatalf("NewHorizon failed: %v", err)
	}
	if !h.Start.Equal(start) {
		t.Errorf("Expected start truncated to %s, got %s", start, h.Start)
	}
	if h.Periods() != 10 {
		t.Errorf("Expected 10 daily periods, got %d", h.Periods())
	}
}
