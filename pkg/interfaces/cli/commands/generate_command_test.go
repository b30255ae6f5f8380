package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/domain/services"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/csv"
)

func TestGenerateCommand_BuildsValidScenario(t *testing.T) {
	cmd := NewGenerateCommand(GenerateConfig{Items: 120, MaxDepth: 5, Demands: 10, Inventory: 0.5, Seed: 42})

	scenario, err := cmd.Build()
	require.NoError(t, err)

	assert.LessOrEqual(t, len(scenario.Items), 120)
	assert.Len(t, scenario.Demand, 10)
	require.NotEmpty(t, scenario.Edges)

	edges := make([]entities.BOMEdge, len(scenario.Edges))
	for i, e := range scenario.Edges {
		edges[i] = *e
	}
	validator := services.NewBOMValidator()
	require.NoError(t, validator.ValidateBOM(edges).Err())
	require.NoError(t, validator.ValidateItemConsistency(edges, scenario.Items).Err())
}

func TestGenerateCommand_SeedIsReproducible(t *testing.T) {
	cfg := GenerateConfig{Items: 60, MaxDepth: 4, Demands: 5, Inventory: 1, Seed: 7}

	first, err := NewGenerateCommand(cfg).Build()
	require.NoError(t, err)
	second, err := NewGenerateCommand(cfg).Build()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateCommand_ExecuteWritesLoadableFiles(t *testing.T) {
	dir := t.TempDir()
	cmd := NewGenerateCommand(GenerateConfig{Items: 40, MaxDepth: 3, Demands: 4, Inventory: 2, Seed: 3, OutputDir: dir})

	require.NoError(t, cmd.Execute(t.Context()))

	scenario, err := csv.NewLoader().LoadScenario(dir)
	require.NoError(t, err)
	assert.Len(t, scenario.Demand, 4)
}

func TestGenerateCommand_RejectsEmptyConfig(t *testing.T) {
	err := NewGenerateCommand(GenerateConfig{OutputDir: t.TempDir()}).Execute(t.Context())
	assert.Error(t, err)
}
