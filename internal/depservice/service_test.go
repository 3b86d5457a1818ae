package depservice_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getailigned/dependency-service/internal/apierr"
	"github.com/getailigned/dependency-service/internal/depservice"
	"github.com/getailigned/dependency-service/internal/events"
	"github.com/getailigned/dependency-service/internal/store/memorystore"
	"github.com/getailigned/dependency-service/internal/types"
)

const tenantA = "tenant-a"

func seedItems(mem *memorystore.Store, ids ...string) {
	for _, id := range ids {
		mem.SeedWorkItem(&types.WorkItem{ID: id, TenantID: tenantA, Title: id, Type: types.WorkItemTask})
	}
}

func newService(mem *memorystore.Store, pub *events.RecordingPublisher) *depservice.Service {
	return depservice.New(mem, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func principal() types.Principal {
	return types.Principal{ID: "user-1", TenantID: tenantA}
}

func TestCreateEdge_Success(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	edge, err := svc.CreateEdge(context.Background(), principal(), depservice.CreateEdgeInput{
		FromID: "a", ToID: "b", DependencyType: types.FinishToStart,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Equal(t, "a", edge.FromID)
	assert.Equal(t, "b", edge.ToID)

	require.Len(t, pub.DependencyEvents, 1)
	assert.Equal(t, types.EventCreated, pub.DependencyEvents[0].Kind)
	require.Len(t, pub.RecalcEvents, 1)
}

func TestCreateEdge_MissingWorkItems(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	_, err := svc.CreateEdge(context.Background(), principal(), depservice.CreateEdgeInput{
		FromID: "a", ToID: "nonexistent", DependencyType: types.FinishToStart,
	})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeWorkItemsNotFound, apiErr.Code)
	assert.Empty(t, pub.DependencyEvents, "no event on a failed mutation")
	assert.Empty(t, pub.RecalcEvents)
}

func TestCreateEdge_DuplicateRejected(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	_, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{
		FromID: "a", ToID: "b", DependencyType: types.FinishToStart,
	})
	require.NoError(t, err)

	_, err = svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{
		FromID: "a", ToID: "b", DependencyType: types.FinishToStart,
	})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeDuplicateDependency, apiErr.Code)
	assert.Len(t, pub.DependencyEvents, 1, "the failed second call emits no event")
}

func TestCreateEdge_RejectsCycle(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b", "c")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	_, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart})
	require.NoError(t, err)
	_, err = svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "b", ToID: "c", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	_, err = svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "c", ToID: "a", DependencyType: types.FinishToStart})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeCycleDetected, apiErr.Code)
	assert.NotEmpty(t, apiErr.Chain)
	assert.Len(t, pub.DependencyEvents, 2, "the rejected mutation emits no third event")
}

func TestCreateEdge_RejectsSelfLoop(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	_, err := svc.CreateEdge(context.Background(), principal(), depservice.CreateEdgeInput{
		FromID: "a", ToID: "a", DependencyType: types.FinishToStart,
	})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeCycleDetected, apiErr.Code)
}

func TestUpdateEdge_EmptyPatchIsNoop(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	edge, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	updated, err := svc.UpdateEdge(ctx, principal(), edge.ID, types.EdgePatch{})
	require.NoError(t, err)
	assert.Equal(t, edge.UpdatedAt, updated.UpdatedAt)
	assert.Len(t, pub.DependencyEvents, 1, "an empty patch emits no update event")
	assert.Len(t, pub.RecalcEvents, 1)
}

func TestUpdateEdge_AppliesFieldsAndEmitsEvent(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	edge, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart, LagDays: 1})
	require.NoError(t, err)

	newLag := 5
	updated, err := svc.UpdateEdge(ctx, principal(), edge.ID, types.EdgePatch{LagDays: &newLag})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.LagDays)

	require.Len(t, pub.DependencyEvents, 2)
	last := pub.DependencyEvents[1]
	assert.Equal(t, types.EventUpdated, last.Kind)
	assert.Equal(t, 1, last.Payload.Before.LagDays)
	assert.Equal(t, 5, last.Payload.After.LagDays)
	require.Len(t, pub.RecalcEvents, 2)
}

func TestUpdateEdge_NotFound(t *testing.T) {
	mem := memorystore.New()
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	newLag := 2
	_, err := svc.UpdateEdge(context.Background(), principal(), "missing-id", types.EdgePatch{LagDays: &newLag})
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeDependencyNotFound, apiErr.Code)
}

func TestDeleteEdge_Success(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	edge, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	err = svc.DeleteEdge(ctx, principal(), edge.ID)
	require.NoError(t, err)

	require.Len(t, pub.DependencyEvents, 2)
	assert.Equal(t, types.EventDeleted, pub.DependencyEvents[1].Kind)
	assert.Equal(t, edge.ID, pub.DependencyEvents[1].Payload.Before.ID)

	_, err = svc.GetEdge(ctx, principal(), edge.ID)
	require.Error(t, err)
}

const tenantB = "tenant-b"

// TestTenantIsolation seeds two tenants with their own items and edges and
// asserts that every read path scoped to one tenant's principal is blind to
// the other's graph (spec.md §8.1 tenant isolation).
func TestTenantIsolation(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b", "c")
	mem.SeedWorkItem(&types.WorkItem{ID: "x", TenantID: tenantB, Title: "X", Type: types.WorkItemTask})
	mem.SeedWorkItem(&types.WorkItem{ID: "y", TenantID: tenantB, Title: "Y", Type: types.WorkItemTask})
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	_, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	principalB := types.Principal{ID: "user-2", TenantID: tenantB}
	_, err = svc.CreateEdge(ctx, principalB, depservice.CreateEdgeInput{FromID: "x", ToID: "y", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	resA, err := svc.Graph(ctx, principal(), nil)
	require.NoError(t, err)
	assert.Len(t, resA.Graph.Nodes, 3)
	for id := range resA.Graph.Nodes {
		assert.NotContains(t, []string{"x", "y"}, id)
	}

	resB, err := svc.Graph(ctx, principalB, nil)
	require.NoError(t, err)
	assert.Len(t, resB.Graph.Nodes, 2)
	for id := range resB.Graph.Nodes {
		assert.NotContains(t, []string{"a", "b", "c"}, id)
	}

	analysisA, err := svc.Analysis(ctx, principal())
	require.NoError(t, err)
	for _, b := range analysisA.Bottlenecks {
		assert.NotContains(t, []string{"x", "y"}, b.WorkItemID)
	}

	cyclesB, err := svc.Cycles(ctx, principalB)
	require.NoError(t, err)
	assert.False(t, cyclesB.HasCycles)
	assert.NotContains(t, cyclesB.AffectedNodes, "a")

	// A edge created under tenant A must not be reachable via tenant B's
	// principal, even by the edge's own id.
	edgesA, err := svc.Graph(ctx, principal(), nil)
	require.NoError(t, err)
	var edgeAID string
	for _, e := range edgesA.Graph.Edges {
		edgeAID = e.ID
	}
	require.NotEmpty(t, edgeAID)
	_, err = svc.GetEdge(ctx, principalB, edgeAID)
	require.Error(t, err, "tenant B must not be able to read tenant A's edge")
}

func TestGraphAndAnalysis(t *testing.T) {
	mem := memorystore.New()
	seedItems(mem, "a", "b", "c")
	pub := &events.RecordingPublisher{}
	svc := newService(mem, pub)

	ctx := context.Background()
	_, err := svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "a", ToID: "b", DependencyType: types.FinishToStart})
	require.NoError(t, err)
	_, err = svc.CreateEdge(ctx, principal(), depservice.CreateEdgeInput{FromID: "b", ToID: "c", DependencyType: types.FinishToStart})
	require.NoError(t, err)

	res, err := svc.Graph(ctx, principal(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Graph.Nodes, 3)
	assert.Equal(t, 21, res.CPM.TotalDurationDays) // a->b->c, 7d tasks each, no lag
	assert.Contains(t, res.CPM.CriticalNodeIDs, "a")
	assert.Contains(t, res.CPM.CriticalNodeIDs, "c")

	analysis, err := svc.Analysis(ctx, principal())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, analysis.RiskScore, 0.0)
	assert.LessOrEqual(t, analysis.RiskScore, 1.0)

	cycles, err := svc.Cycles(ctx, principal())
	require.NoError(t, err)
	assert.False(t, cycles.HasCycles)
}
