package graph_test

import (
	"testing"

	"github.com/getailigned/dependency-service/internal/graph"
	"github.com/getailigned/dependency-service/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestWouldCreateCycle_DetectsExistingPath(t *testing.T) {
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
		edge("e2", "B", "C", 0),
	}

	ok, chain := graph.WouldCreateCycle(edges, "C", "A")
	assert.True(t, ok)
	assert.Equal(t, []string{"C", "A", "B", "C"}, chain)
}

func TestWouldCreateCycle_NoExistingPath(t *testing.T) {
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
	}

	ok, chain := graph.WouldCreateCycle(edges, "A", "C")
	assert.False(t, ok)
	assert.Nil(t, chain)
}

func TestWouldCreateCycle_SelfLoop(t *testing.T) {
	ok, chain := graph.WouldCreateCycle(nil, "A", "A")
	assert.True(t, ok)
	assert.Equal(t, []string{"A", "A"}, chain)
}

func TestWouldCreateCycle_RespectsDepthBound(t *testing.T) {
	// A chain of 25 nodes: node0 -> node1 -> ... -> node24. A reachability
	// probe from node24 back to node0 is 24 hops deep, beyond the 20-hop
	// bound, so it must NOT be reported as a cycle.
	var edges []*types.DependencyEdge
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = "node" + itoa(i)
	}
	for i := 0; i < len(ids)-1; i++ {
		edges = append(edges, edge("e"+itoa(i), ids[i], ids[i+1], 0))
	}

	ok, _ := graph.WouldCreateCycle(edges, ids[len(ids)-1], ids[0])
	assert.False(t, ok, "reachability beyond the depth bound must not be reported")
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestDetectCycles_SimpleTwoNode(t *testing.T) {
	items := []*types.WorkItem{item("A", 1), item("B", 1)}
	edges := []*types.DependencyEdge{edge("e1", "A", "B", 0), edge("e2", "B", "A", 0)}

	g := graph.Build("t1", items, edges, nil)
	result := graph.DetectCycles(g)

	assert.True(t, result.HasCycles)
	assert.Len(t, result.Cycles, 1)
	assert.ElementsMatch(t, []string{"A", "B"}, result.AffectedNodes)
	assert.Len(t, result.Suggestions, 1)
}

func TestDetectCycles_MultipleComponentsContinueAfterFirstHit(t *testing.T) {
	items := []*types.WorkItem{item("A", 1), item("B", 1), item("X", 1), item("Y", 1)}
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
		edge("e2", "B", "A", 0),
		edge("e3", "X", "Y", 0),
		edge("e4", "Y", "X", 0),
	}

	g := graph.Build("t1", items, edges, nil)
	result := graph.DetectCycles(g)

	assert.True(t, result.HasCycles)
	assert.Len(t, result.Cycles, 2)
	assert.ElementsMatch(t, []string{"A", "B", "X", "Y"}, result.AffectedNodes)
}

func TestDetectCycles_AcyclicGraphHasNone(t *testing.T) {
	items := []*types.WorkItem{item("A", 1), item("B", 1), item("C", 1)}
	edges := []*types.DependencyEdge{edge("e1", "A", "B", 0), edge("e2", "B", "C", 0)}

	g := graph.Build("t1", items, edges, nil)
	result := graph.DetectCycles(g)

	assert.False(t, result.HasCycles)
	assert.Empty(t, result.Cycles)
	assert.Empty(t, result.AffectedNodes)
}
