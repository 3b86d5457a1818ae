// Package graph implements the pure, in-memory graph algorithms that sit
// at the core of the dependency service: materialization (this file),
// cycle detection, the CPM forward/backward pass, and bottleneck/risk
// analysis. None of these functions touch the store or the event bus —
// they operate entirely on the types.Graph built here, matching the
// concurrency model of spec.md §5 (pure functions, no shared mutable
// state between requests).
package graph

import "github.com/getailigned/dependency-service/internal/types"

// Build materializes a types.Graph for a tenant from the full set of work
// items and edges already scoped to that tenant by the caller (the store
// adapter applies the tenant_id equality predicate; this function never
// sees another tenant's rows).
//
// When filter is non-nil, the node set is restricted to items whose id is
// in filter, and the edge set is restricted to edges touching filter on
// either endpoint (spec.md §4.2). Edges whose endpoints are not both
// present in the final node set are dropped — "dangling edges are not
// returned to callers of CPM" — so the CPM engine's predecessor/successor
// lookups stay total (spec.md §9, edge-filter query semantics).
func Build(tenantID string, items []*types.WorkItem, edges []*types.DependencyEdge, filter map[string]bool) *types.Graph {
	g := &types.Graph{
		TenantID:     tenantID,
		Nodes:        make(map[string]*types.GraphNode, len(items)),
		Successors:   make(map[string][]*types.GraphEdge),
		Predecessors: make(map[string][]*types.GraphEdge),
	}

	for _, wi := range items {
		if filter != nil && !filter[wi.ID] {
			continue
		}
		g.Nodes[wi.ID] = &types.GraphNode{
			ID:           wi.ID,
			Title:        wi.Title,
			Type:         wi.Type,
			Status:       wi.Status,
			DurationDays: wi.DurationDays(),
		}
	}

	for _, e := range edges {
		if filter != nil && !filter[e.FromID] && !filter[e.ToID] {
			continue
		}
		if g.Nodes[e.FromID] == nil || g.Nodes[e.ToID] == nil {
			continue // dangling: endpoint outside the final node set
		}
		ge := &types.GraphEdge{
			ID:             e.ID,
			FromID:         e.FromID,
			ToID:           e.ToID,
			DependencyType: e.DependencyType,
			LagDays:        e.LagDays,
			Metadata:       e.Metadata,
		}
		g.Edges = append(g.Edges, ge)
		g.Successors[e.FromID] = append(g.Successors[e.FromID], ge)
		g.Predecessors[e.ToID] = append(g.Predecessors[e.ToID], ge)
	}

	return g
}
