// Package store is the adapter boundary onto the transactional relational
// store holding work items and dependency edges (spec.md §1 treats the
// store itself as an external collaborator; this package owns the
// parameterised queries and transaction semantics the core consumes).
package store

import (
	"context"

	"github.com/getailigned/dependency-service/internal/types"
)

// Tx is a single transaction against the store, opened before step 1 of
// the edge lifecycle (spec.md §4.1) and committed after step 4. All reads
// performed for that mutation use the same Tx.
type Tx interface {
	// WorkItemsExist returns the subset of ids that do NOT exist in the
	// tenant, for the WORK_ITEMS_NOT_FOUND check.
	WorkItemsExist(ctx context.Context, tenantID string, ids []string) (missing []string, err error)

	// FindEdgeByFromTo looks up an existing edge by (tenant_id, from_id,
	// to_id), for the DUPLICATE_DEPENDENCY check. Returns nil, nil if none.
	FindEdgeByFromTo(ctx context.Context, tenantID, fromID, toID string) (*types.DependencyEdge, error)

	// GetEdge looks up an edge by (id, tenant_id). Returns nil, nil if none.
	GetEdge(ctx context.Context, id, tenantID string) (*types.DependencyEdge, error)

	// TenantEdges returns every stored edge for the tenant, used by the
	// wouldCreateCycle reachability probe (spec.md §4.3) without
	// materializing the whole graph.
	TenantEdges(ctx context.Context, tenantID string) ([]*types.DependencyEdge, error)

	// InsertEdge writes a newly minted edge.
	InsertEdge(ctx context.Context, edge *types.DependencyEdge) error

	// UpdateEdge writes back a mutated edge.
	UpdateEdge(ctx context.Context, edge *types.DependencyEdge) error

	// DeleteEdge removes an edge by (id, tenant_id).
	DeleteEdge(ctx context.Context, id, tenantID string) error

	// LockTenant acquires a transaction-scoped advisory lock scoped to the
	// tenant, held for the lifetime of the transaction. This is the chosen
	// concurrency strategy for spec.md §5's "two concurrent createEdge
	// calls" race: option (b), a per-tenant advisory lock, rather than (a)
	// serializable isolation with retry. See DESIGN.md.
	LockTenant(ctx context.Context, tenantID string) error
}

// Store opens transactions and serves the whole-graph reads used by the
// read path (graph builder -> CPM -> cycle detector -> analysis).
type Store interface {
	// WithTx runs fn inside a single transaction. A non-nil return from fn
	// rolls the transaction back; nil commits. No event is published on
	// rollback (spec.md §5).
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// WorkItems returns every work item in the tenant, or only those whose
	// id is in ids when ids is non-nil (spec.md §4.2).
	WorkItems(ctx context.Context, tenantID string, ids []string) ([]*types.WorkItem, error)

	// Edges returns every edge in the tenant, or only those touching
	// touching (either endpoint) when touching is non-nil (spec.md §4.2).
	Edges(ctx context.Context, tenantID string, touching map[string]bool) ([]*types.DependencyEdge, error)

	// Close releases the connection pool.
	Close()
}
