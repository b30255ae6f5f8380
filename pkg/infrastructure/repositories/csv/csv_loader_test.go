package csv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeScenario(t *testing.T, bom string) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "items.csv", `item_id,description,unit_of_measure,lead_time_days,safety_stock,default_supplier_id
Y,Bicycle,EA,0,0,
Z,Frame,EA,7,2.5,SUP-1
`)
	writeFile(t, dir, "bom.csv", bom)
	writeFile(t, dir, "supply.csv", `item_id,quantity,available_date,kind,reference
Z,10,2025-01-06,on_hand,
Z,4,2025-01-20,receipt,PO-7
`)
	writeFile(t, dir, "demands.csv", `item_id,quantity,needed_by,source_type,source_document
Y,5,2025-01-27,sales_order,SO-1
`)
	return dir
}

func TestLoader_LoadScenario(t *testing.T) {
	dir := writeScenario(t, `parent_id,component_id,qty_per_unit,lead_time_days
Y,Z,2,7
`)

	scenario, err := NewLoader().LoadScenario(dir)
	require.NoError(t, err)

	require.Len(t, scenario.Items, 2)
	assert.True(t, scenario.Items[1].SafetyStock.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "SUP-1", scenario.Items[1].DefaultSupplierID)

	require.Len(t, scenario.Edges, 1)
	assert.Equal(t, 7, scenario.Edges[0].LeadTimeDays)

	require.Len(t, scenario.Supply, 2)
	assert.Equal(t, entities.ScheduledReceipt, scenario.Supply[1].Kind)

	require.Len(t, scenario.Demand, 1)
	assert.Equal(t, entities.SalesOrder, scenario.Demand[0].SourceType)
}

func TestLoader_RejectsCyclicBOM(t *testing.T) {
	dir := writeScenario(t, `parent_id,component_id,qty_per_unit,lead_time_days
Y,Z,1,0
Z,Y,1,0
`)

	_, err := NewLoader().LoadScenario(dir)
	assert.ErrorIs(t, err, entities.ErrCyclicBOM)
}

func TestLoader_RejectsUnknownBOMItem(t *testing.T) {
	dir := writeScenario(t, `parent_id,component_id,qty_per_unit,lead_time_days
Y,W,1,0
`)

	_, err := NewLoader().LoadScenario(dir)
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestLoader_HeaderAndRowErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad_header.csv", "id,qty\nA,1\n")
	writeFile(t, dir, "bad_qty.csv", "item_id,quantity,needed_by,source_type,source_document\nA,-1,2025-01-01,forecast,\n")
	writeFile(t, dir, "bad_kind.csv", "item_id,quantity,available_date,kind,reference\nA,1,2025-01-01,consignment,\n")

	loader := NewLoader()

	_, err := loader.LoadItems(filepath.Join(dir, "bad_header.csv"))
	assert.ErrorContains(t, err, "header mismatch")

	_, err = loader.LoadDemands(filepath.Join(dir, "bad_qty.csv"))
	assert.ErrorContains(t, err, "row 2")

	_, err = loader.LoadSupply(filepath.Join(dir, "bad_kind.csv"))
	assert.ErrorContains(t, err, "invalid supply kind")

	_, err = loader.LoadBOM(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestWriteScenario_ReadsBack(t *testing.T) {
	src := writeScenario(t, `parent_id,component_id,qty_per_unit,lead_time_days
Y,Z,2,7
`)
	loaded, err := NewLoader().LoadScenario(src)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, WriteScenario(out, loaded))

	again, err := NewLoader().LoadScenario(out)
	require.NoError(t, err)
	assert.Equal(t, loaded, again)
}
