package mrp

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	svctest "github.com/vsinha/mrp-planner/pkg/application/services/testing"
	"github.com/vsinha/mrp-planner/pkg/domain/entities"
	"github.com/vsinha/mrp-planner/pkg/infrastructure/repositories/memory"
)

func bomOf(edges ...[2]string) *memory.BOMRepository {
	repo := memory.NewBOMRepository(len(edges))
	for _, e := range edges {
		repo.AddEdge(entities.BOMEdge{
			ParentID:        entities.ItemID(e[0]),
			ComponentID:     entities.ItemID(e[1]),
			QuantityPerUnit: decimal.NewFromInt(1),
		})
	}
	return repo
}

func levelIDs(g *bomGraph) [][]entities.ItemID {
	out := make([][]entities.ItemID, len(g.levels))
	for i, level := range g.levels {
		for _, idx := range level {
			out[i] = append(out[i], g.nodes[idx].ID)
		}
	}
	return out
}

func TestBuildBOMGraph_LowLevelCodes(t *testing.T) {
	repo := bomOf([2]string{"A", "B"}, [2]string{"A", "C"}, [2]string{"B", "C"}, [2]string{"D", "C"})

	graph, err := buildBOMGraph(context.Background(), repo, []entities.ItemID{"D", "A"}, 0)
	require.NoError(t, err)

	assert.Equal(t, [][]entities.ItemID{{"A", "D"}, {"B"}, {"C"}}, levelIDs(graph))
	assert.Equal(t, []entities.ItemID{"A", "B", "C", "D"}, graph.ItemIDs())
	assert.Len(t, graph.edges, 4)
}

func TestBuildBOMGraph_ResolvesSharedComponentOnce(t *testing.T) {
	resolver := &svctest.MockBOMResolver{}
	edge := func(parent, child string) entities.BOMEdge {
		return entities.BOMEdge{ParentID: entities.ItemID(parent), ComponentID: entities.ItemID(child), QuantityPerUnit: decimal.NewFromInt(1)}
	}
	resolver.On("ComponentsOf", mock.Anything, entities.ItemID("A")).Return([]entities.BOMEdge{edge("A", "C"), edge("A", "B")}, nil).Once()
	resolver.On("ComponentsOf", mock.Anything, entities.ItemID("B")).Return([]entities.BOMEdge{edge("B", "D")}, nil).Once()
	resolver.On("ComponentsOf", mock.Anything, entities.ItemID("C")).Return([]entities.BOMEdge{edge("C", "D")}, nil).Once()
	resolver.On("ComponentsOf", mock.Anything, entities.ItemID("D")).Return([]entities.BOMEdge(nil), nil).Once()

	graph, err := buildBOMGraph(context.Background(), resolver, []entities.ItemID{"A"}, 0)
	require.NoError(t, err)

	resolver.AssertExpectations(t)
	assert.Equal(t, [][]entities.ItemID{{"A"}, {"B", "C"}, {"D"}}, levelIDs(graph))
}

func TestBuildBOMGraph_DetectsCycle(t *testing.T) {
	repo := bomOf([2]string{"A", "B"}, [2]string{"B", "A"})

	_, err := buildBOMGraph(context.Background(), repo, []entities.ItemID{"A"}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrCyclicBOM)

	var cyclic *entities.CyclicBOMError
	require.True(t, errors.As(err, &cyclic))
	assert.Equal(t, []entities.ItemID{"A", "B", "A"}, cyclic.Chain)
	assert.False(t, cyclic.DepthExceeded)
}

func TestBuildBOMGraph_DetectsCycleBelowRoot(t *testing.T) {
	repo := bomOf([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "D"}, [2]string{"D", "B"})

	_, err := buildBOMGraph(context.Background(), repo, []entities.ItemID{"A"}, 0)

	var cyclic *entities.CyclicBOMError
	require.True(t, errors.As(err, &cyclic))
	assert.Equal(t, []entities.ItemID{"B", "C", "D", "B"}, cyclic.Chain)
}

func TestBuildBOMGraph_DepthBound(t *testing.T) {
	repo := bomOf([2]string{"I0", "I1"}, [2]string{"I1", "I2"}, [2]string{"I2", "I3"}, [2]string{"I3", "I4"})

	_, err := buildBOMGraph(context.Background(), repo, []entities.ItemID{"I0"}, 2)
	require.ErrorIs(t, err, entities.ErrCyclicBOM)

	var cyclic *entities.CyclicBOMError
	require.True(t, errors.As(err, &cyclic))
	assert.True(t, cyclic.DepthExceeded)
	assert.Equal(t, []entities.ItemID{"I0", "I1", "I2", "I3"}, cyclic.Chain)

	_, err = buildBOMGraph(context.Background(), repo, []entities.ItemID{"I0"}, 4)
	assert.NoError(t, err)
}

func TestBuildBOMGraph_ResolverError(t *testing.T) {
	resolver := &svctest.MockBOMResolver{}
	resolver.On("ComponentsOf", mock.Anything, entities.ItemID("A")).Return(nil, errors.New("connection reset"))

	_, err := buildBOMGraph(context.Background(), resolver, []entities.ItemID{"A"}, 0)
	assert.ErrorContains(t, err, "connection reset")
}
