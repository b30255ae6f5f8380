package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vsinha/mrp-planner/pkg/application/dto"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
}

// Report is everything one CLI run produced. Generation is nil when
// requisitions were not requested.
type Report struct {
	Result       *dto.RunResult                 `json:"result"`
	Requirements []entities.MRPRequirement      `json:"requirements"`
	Shortages    []entities.MRPShortage         `json:"shortages"`
	Requisitions []entities.PurchaseRequisition `json:"requisitions,omitempty"`
}

// Generate creates output in the specified format
func Generate(w io.Writer, report *Report, config Config) error {
	switch config.Format {
	case "text":
		return generateTextOutput(w, report)
	case "json":
		return generateJSONOutput(w, report, config)
	case "csv":
		return generateCSVOutput(w, report, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

func generateTextOutput(w io.Writer, report *Report) error {
	run := report.Result.Run

	fmt.Fprintf(w, "MRP Run %s\n", run.ID)
	fmt.Fprintf(w, "======================================\n\n")
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	fmt.Fprintf(w, "Horizon: %s\n", run.Horizon)
	fmt.Fprintf(w, "BOM Levels: %d\n", report.Result.Levels)
	fmt.Fprintf(w, "Requirements: %d\n", report.Result.RequirementCount)
	fmt.Fprintf(w, "Shortages: %d\n", report.Result.ShortageCount)
	fmt.Fprintf(w, "Calculation Time: %v\n\n", report.Result.Duration)

	var nets []entities.MRPRequirement
	for _, r := range report.Requirements {
		if r.NetRequirement.IsPositive() {
			nets = append(nets, r)
		}
	}
	if len(nets) > 0 {
		fmt.Fprintf(w, "Net Requirements:\n")
		fmt.Fprintf(w, "%-20s %-6s %-12s %-6s %-12s %-12s %-12s\n",
			"Item", "Period", "Start", "Level", "Gross", "On Hand", "Net")
		for _, r := range nets {
			fmt.Fprintf(w, "%-20s %-6d %-12s %-6d %-12s %-12s %-12s\n",
				r.ItemID, r.Period, r.PeriodStart.Format(time.DateOnly), r.Level,
				r.GrossRequirement, r.OnHand, r.NetRequirement)
		}
		fmt.Fprintln(w)
	}

	if len(report.Shortages) > 0 {
		fmt.Fprintf(w, "Shortages:\n")
		fmt.Fprintf(w, "%-20s %-12s %-12s\n", "Item", "Quantity", "Needed By")
		for _, s := range report.Shortages {
			fmt.Fprintf(w, "%-20s %-12s %-12s\n", s.ItemID, s.Quantity, s.NeededByDate.Format(time.DateOnly))
		}
		fmt.Fprintln(w)
	}

	if len(report.Requisitions) > 0 {
		fmt.Fprintf(w, "Purchase Requisitions:\n")
		for _, req := range report.Requisitions {
			fmt.Fprintf(w, "  %s  group=%s  lines=%d\n", req.ExternalID, req.GroupKey, len(req.Lines))
			for _, line := range req.Lines {
				fmt.Fprintf(w, "    %-20s %-12s %-4s %s\n",
					line.ItemID, line.Quantity, line.UnitOfMeasure, line.NeededBy.Format(time.DateOnly))
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}

func generateJSONOutput(w io.Writer, report *Report, config Config) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		_, err = fmt.Fprintln(w, string(jsonData))
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, "mrp_results.json")
	if err := os.WriteFile(filename, jsonData, 0o644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(w, "JSON results saved to: %s\n", filename)
	}
	return nil
}

func generateCSVOutput(w io.Writer, report *Report, config Config) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}
	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{
			"requirements.csv",
			[]string{"item_id", "period", "period_start", "level", "gross", "scheduled_receipts", "on_hand", "net", "past_due"},
			requirementRows(report.Requirements),
		},
		{
			"shortages.csv",
			[]string{"item_id", "quantity", "needed_by"},
			shortageRows(report.Shortages),
		},
		{
			"requisition_lines.csv",
			[]string{"requisition_id", "group_key", "item_id", "quantity", "unit_of_measure", "needed_by"},
			requisitionRows(report.Requisitions),
		},
	}

	for _, f := range files {
		filename := filepath.Join(config.OutputDir, f.name)
		if err := writeCSV(filename, f.header, f.rows); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		if config.Verbose {
			fmt.Fprintf(w, "CSV saved to: %s\n", filename)
		}
	}
	return nil
}

func requirementRows(reqs []entities.MRPRequirement) [][]string {
	rows := make([][]string, len(reqs))
	for i, r := range reqs {
		rows[i] = []string{
			string(r.ItemID), strconv.Itoa(r.Period), r.PeriodStart.Format(time.DateOnly), strconv.Itoa(r.Level),
			r.GrossRequirement.String(), r.ScheduledReceipts.String(), r.OnHand.String(), r.NetRequirement.String(),
			strconv.FormatBool(r.PastDue),
		}
	}
	return rows
}

func shortageRows(shortages []entities.MRPShortage) [][]string {
	rows := make([][]string, len(shortages))
	for i, s := range shortages {
		rows[i] = []string{string(s.ItemID), s.Quantity.String(), s.NeededByDate.Format(time.DateOnly)}
	}
	return rows
}

func requisitionRows(reqs []entities.PurchaseRequisition) [][]string {
	var rows [][]string
	for _, req := range reqs {
		for _, line := range req.Lines {
			rows = append(rows, []string{
				req.ExternalID, req.GroupKey, string(line.ItemID), line.Quantity.String(),
				line.UnitOfMeasure, line.NeededBy.Format(time.DateOnly),
			})
		}
	}
	return rows
}

func writeCSV(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return file.Close()
}
