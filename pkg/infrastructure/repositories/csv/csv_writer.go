package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteScenario writes s into dir using the same file layout LoadScenario reads
func WriteScenario(dir string, s *Scenario) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	items := make([][]string, len(s.Items))
	for i, it := range s.Items {
		items[i] = []string{
			string(it.ID), it.Description, it.UnitOfMeasure,
			strconv.Itoa(it.LeadTimeDays), it.SafetyStock.String(), it.DefaultSupplierID,
		}
	}
	edges := make([][]string, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = []string{
			string(e.ParentID), string(e.ComponentID), e.QuantityPerUnit.String(), strconv.Itoa(e.LeadTimeDays),
		}
	}
	supply := make([][]string, len(s.Supply))
	for i, r := range s.Supply {
		supply[i] = []string{
			string(r.ItemID), r.Quantity.String(), r.AvailableDate.Format(time.DateOnly), r.Kind.String(), r.Reference,
		}
	}
	demand := make([][]string, len(s.Demand))
	for i, r := range s.Demand {
		demand[i] = []string{
			string(r.ItemID), r.Quantity.String(), r.NeededByDate.Format(time.DateOnly), r.SourceType.String(), r.SourceDocument,
		}
	}

	files := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"items.csv", itemsHeader, items},
		{"bom.csv", bomHeader, edges},
		{"supply.csv", supplyHeader, supply},
		{"demands.csv", demandHeader, demand},
	}
	for _, f := range files {
		if err := writeRows(filepath.Join(dir, f.name), f.header, f.rows); err != nil {
			return err
		}
	}
	return nil
}

func writeRows(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}
