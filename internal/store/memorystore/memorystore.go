// Package memorystore is an in-process fake implementing store.Store and
// store.Tx, used by internal/depservice's unit tests in place of a live
// Postgres instance — the same role ephemeral stores play in the teacher
// codebase's own test suites (internal/storage/ephemeral).
package memorystore

import (
	"context"
	"sync"

	"github.com/getailigned/dependency-service/internal/apierr"
	"github.com/getailigned/dependency-service/internal/store"
	"github.com/getailigned/dependency-service/internal/types"
)

// Store is a mutex-guarded in-memory Store. Every WithTx call holds the
// single mutex for its duration, which trivially satisfies the per-tenant
// serialization requirement of spec.md §5 for tests (a single global lock
// is a correct, if coarse, stand-in for the Postgres advisory lock used in
// production — see internal/store.PostgresStore.LockTenant).
type Store struct {
	mu        sync.Mutex
	workItems map[string]*types.WorkItem
	edges     map[string]*types.DependencyEdge
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		workItems: make(map[string]*types.WorkItem),
		edges:     make(map[string]*types.DependencyEdge),
	}
}

// SeedWorkItem installs a work item directly, bypassing any transaction —
// a test setup helper only.
func (s *Store) SeedWorkItem(wi *types.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workItems[wi.ID] = wi
}

// SeedEdge installs an edge directly, bypassing any transaction — a test
// setup helper only.
func (s *Store) SeedEdge(e *types.DependencyEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[e.ID] = e
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Operate on a shallow copy of the edge map so a failed fn leaves the
	// store untouched (transactional rollback semantics, spec.md §5).
	snapshot := make(map[string]*types.DependencyEdge, len(s.edges))
	for k, v := range s.edges {
		cp := *v
		snapshot[k] = &cp
	}

	tx := &memTx{parent: s, edges: snapshot}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.edges = tx.edges
	return nil
}

func (s *Store) WorkItems(ctx context.Context, tenantID string, ids []string) ([]*types.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.WorkItem
	if ids == nil {
		for _, wi := range s.workItems {
			if wi.TenantID == tenantID {
				out = append(out, wi)
			}
		}
		return out, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, wi := range s.workItems {
		if wi.TenantID == tenantID && want[wi.ID] {
			out = append(out, wi)
		}
	}
	return out, nil
}

func (s *Store) Edges(ctx context.Context, tenantID string, touching map[string]bool) ([]*types.DependencyEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.DependencyEdge
	for _, e := range s.edges {
		if e.TenantID != tenantID {
			continue
		}
		if touching != nil && !touching[e.FromID] && !touching[e.ToID] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Close() {}

// memTx is the transaction-scoped view handed to fn by WithTx.
type memTx struct {
	parent *Store
	edges  map[string]*types.DependencyEdge
}

func (t *memTx) LockTenant(ctx context.Context, tenantID string) error {
	return nil // the store-level mutex already serializes the whole transaction
}

func (t *memTx) WorkItemsExist(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		wi, ok := t.parent.workItems[id]
		if !ok || wi.TenantID != tenantID {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *memTx) FindEdgeByFromTo(ctx context.Context, tenantID, fromID, toID string) (*types.DependencyEdge, error) {
	for _, e := range t.edges {
		if e.TenantID == tenantID && e.FromID == fromID && e.ToID == toID {
			return e, nil
		}
	}
	return nil, nil
}

func (t *memTx) GetEdge(ctx context.Context, id, tenantID string) (*types.DependencyEdge, error) {
	e, ok := t.edges[id]
	if !ok || e.TenantID != tenantID {
		return nil, nil
	}
	return e, nil
}

func (t *memTx) TenantEdges(ctx context.Context, tenantID string) ([]*types.DependencyEdge, error) {
	var out []*types.DependencyEdge
	for _, e := range t.edges {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) InsertEdge(ctx context.Context, edge *types.DependencyEdge) error {
	cp := *edge
	t.edges[edge.ID] = &cp
	return nil
}

func (t *memTx) UpdateEdge(ctx context.Context, edge *types.DependencyEdge) error {
	if _, ok := t.edges[edge.ID]; !ok {
		return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
	}
	cp := *edge
	t.edges[edge.ID] = &cp
	return nil
}

func (t *memTx) DeleteEdge(ctx context.Context, id, tenantID string) error {
	e, ok := t.edges[id]
	if !ok || e.TenantID != tenantID {
		return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
	}
	delete(t.edges, id)
	return nil
}
