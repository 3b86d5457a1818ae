package graph_test

import (
	"testing"
	"time"

	"github.com/getailigned/dependency-service/internal/graph"
	"github.com/getailigned/dependency-service/internal/types"
	"github.com/stretchr/testify/assert"
)

func dur(d int) *int { return &d }

func item(id string, days int) *types.WorkItem {
	return &types.WorkItem{ID: id, TenantID: "t1", Title: id, Type: types.WorkItemTask, Status: "open", EstimatedDurationDays: dur(days)}
}

func edge(id, from, to string, lag int) *types.DependencyEdge {
	return &types.DependencyEdge{ID: id, TenantID: "t1", FromID: from, ToID: to, DependencyType: types.FinishToStart, LagDays: lag}
}

func TestCompute_LinearChainNoLag(t *testing.T) {
	items := []*types.WorkItem{item("A", 2), item("B", 3), item("C", 5)}
	edges := []*types.DependencyEdge{edge("e1", "A", "B", 0), edge("e2", "B", "C", 0)}

	g := graph.Build("t1", items, edges, nil)
	result := graph.Compute(g, time.Now())

	assert.Equal(t, 10, result.TotalDurationDays)
	assert.Equal(t, []string{"A", "B", "C"}, result.CriticalNodeIDs)

	for _, id := range []string{"A", "B", "C"} {
		assert.Zero(t, g.Nodes[id].SlackDays, "node %s should have zero slack", id)
		assert.True(t, g.Nodes[id].IsCritical)
	}
}

func TestCompute_DiamondWithLag(t *testing.T) {
	items := []*types.WorkItem{item("A", 4), item("B", 2), item("C", 3), item("D", 1)}
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
		edge("e2", "A", "C", 1),
		edge("e3", "B", "D", 0),
		edge("e4", "C", "D", 0),
	}

	g := graph.Build("t1", items, edges, nil)
	result := graph.Compute(g, time.Now())

	assert.Equal(t, 9, result.TotalDurationDays)
	assert.Equal(t, []string{"A", "C", "D"}, result.CriticalNodeIDs)
	assert.Equal(t, 2, g.Nodes["B"].SlackDays)
	assert.False(t, g.Nodes["B"].IsCritical)

	assert.Equal(t, 6, g.Nodes["B"].EarliestFinish)
	assert.Equal(t, 8, g.Nodes["C"].EarliestFinish)
}

func TestCompute_EmptyGraph(t *testing.T) {
	g := graph.Build("t1", nil, nil, nil)
	result := graph.Compute(g, time.Now())

	assert.Equal(t, 0, result.TotalDurationDays)
	assert.Empty(t, result.CriticalNodeIDs)
}

func TestCompute_DisconnectedComponents(t *testing.T) {
	items := []*types.WorkItem{item("A", 5), item("B", 3), item("X", 20), item("Y", 1)}
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
		edge("e2", "X", "Y", 0),
	}

	g := graph.Build("t1", items, edges, nil)
	result := graph.Compute(g, time.Now())

	assert.Equal(t, 21, result.TotalDurationDays)
}

func TestCompute_NegativeLagClipsAtSourceOnly(t *testing.T) {
	items := []*types.WorkItem{item("A", 5), item("B", 3)}
	edges := []*types.DependencyEdge{edge("e1", "A", "B", -2)}

	g := graph.Build("t1", items, edges, nil)
	graph.Compute(g, time.Now())

	assert.Equal(t, 0, g.Nodes["A"].EarliestStart)
	assert.Equal(t, 3, g.Nodes["B"].EarliestStart) // EF(A)=5, lag=-2 => 3
}

func TestSoundness_EveryNodeSatisfiesCPMInvariants(t *testing.T) {
	items := []*types.WorkItem{item("A", 4), item("B", 2), item("C", 3), item("D", 1)}
	edges := []*types.DependencyEdge{
		edge("e1", "A", "B", 0),
		edge("e2", "A", "C", 1),
		edge("e3", "B", "D", 0),
		edge("e4", "C", "D", 0),
	}
	g := graph.Build("t1", items, edges, nil)
	graph.Compute(g, time.Now())

	for id, n := range g.Nodes {
		assert.Equal(t, n.EarliestStart+n.DurationDays, n.EarliestFinish, "node %s EF", id)
		assert.Equal(t, n.LatestStart+n.DurationDays, n.LatestFinish, "node %s LF", id)
		assert.LessOrEqual(t, n.EarliestStart, n.LatestStart, "node %s ES<=LS", id)
		assert.LessOrEqual(t, n.EarliestFinish, n.LatestFinish, "node %s EF<=LF", id)
		assert.GreaterOrEqual(t, n.SlackDays, 0, "node %s slack>=0", id)
	}

	for _, e := range g.Edges {
		from, to := g.Nodes[e.FromID], g.Nodes[e.ToID]
		assert.LessOrEqual(t, from.EarliestFinish+e.LagDays, to.EarliestStart, "edge %s->%s", e.FromID, e.ToID)
	}
}
