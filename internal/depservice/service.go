// Package depservice implements the edge lifecycle (spec.md §4.1) and the
// read-path orchestration (graph builder -> CPM -> cycle detector ->
// analysis layer, spec.md §2). It is the only package that knows how to
// sequence the store, the pure graph algorithms, and the event publisher
// together; each of those collaborators remains independently testable.
package depservice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/getailigned/dependency-service/internal/apierr"
	"github.com/getailigned/dependency-service/internal/events"
	"github.com/getailigned/dependency-service/internal/graph"
	"github.com/getailigned/dependency-service/internal/store"
	"github.com/getailigned/dependency-service/internal/types"
)

// Service wires together the store, event publisher, and the pure graph
// package to implement every operation spec.md §4 names.
type Service struct {
	store     store.Store
	publisher events.Publisher
	log       *slog.Logger
	now       func() time.Time
}

// New builds a Service that stamps edges and events with time.Now.
func New(s store.Store, publisher events.Publisher, log *slog.Logger) *Service {
	return &Service{store: s, publisher: publisher, log: log, now: time.Now}
}

// CreateEdgeInput is the createEdge request body (spec.md §4.1).
type CreateEdgeInput struct {
	FromID         string
	ToID           string
	DependencyType types.DependencyType
	LagDays        int
	Metadata       json.RawMessage
}

// CreateEdge runs the five-step createEdge sequence inside one store
// transaction: validate work items exist, probe for cycle creation,
// check uniqueness, insert, then (after commit) emit exactly one recalc
// event and one dependency.created event.
func (s *Service) CreateEdge(ctx context.Context, principal types.Principal, in CreateEdgeInput) (*types.DependencyEdge, error) {
	if in.FromID == "" || in.ToID == "" || in.DependencyType == "" {
		return nil, apierr.New(apierr.CodeMissingRequiredFields, "from_id, to_id, and dependency_type are required")
	}
	if !types.ValidDependencyType(in.DependencyType) {
		return nil, apierr.New(apierr.CodeInvalidRequest, fmt.Sprintf("unknown dependency_type %q", in.DependencyType))
	}
	if in.FromID == in.ToID {
		return nil, apierr.New(apierr.CodeCycleDetected, "a work item cannot depend on itself").
			WithChain([]string{in.FromID, in.ToID})
	}

	tenantID := principal.TenantID
	now := s.now()

	var created *types.DependencyEdge
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}

		missing, err := tx.WorkItemsExist(ctx, tenantID, []string{in.FromID, in.ToID})
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return apierr.New(apierr.CodeWorkItemsNotFound,
				fmt.Sprintf("work item(s) not found: %v", missing))
		}

		tenantEdges, err := tx.TenantEdges(ctx, tenantID)
		if err != nil {
			return err
		}
		if would, chain := graph.WouldCreateCycle(tenantEdges, in.FromID, in.ToID); would {
			return apierr.New(apierr.CodeCycleDetected,
				fmt.Sprintf("adding %s -> %s would create a cycle: %v", in.FromID, in.ToID, chain)).
				WithChain(chain)
		}

		existing, err := tx.FindEdgeByFromTo(ctx, tenantID, in.FromID, in.ToID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apierr.New(apierr.CodeDuplicateDependency,
				fmt.Sprintf("dependency %s -> %s already exists", in.FromID, in.ToID))
		}

		created = &types.DependencyEdge{
			ID:             uuid.NewString(),
			TenantID:       tenantID,
			FromID:         in.FromID,
			ToID:           in.ToID,
			DependencyType: in.DependencyType,
			LagDays:        in.LagDays,
			CreatedAt:      now,
			CreatedBy:      principal.ID,
			UpdatedAt:      now,
			Metadata:       in.Metadata,
		}
		return tx.InsertEdge(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishRecalc(ctx, &types.RecalcEvent{TenantID: tenantID, Reason: "dependency.created", Timestamp: now})
	s.publisher.PublishDependencyEvent(ctx, &types.DependencyEvent{
		Kind:         types.EventCreated,
		DependencyID: created.ID,
		TenantID:     tenantID,
		UserID:       principal.ID,
		Payload:      types.EventPayload{After: created},
		Timestamp:    now,
	})

	return created, nil
}

// UpdateEdge applies only the fields present in patch. An empty patch is a
// no-op: it returns the existing edge unchanged and emits no event
// (spec.md §4.1).
func (s *Service) UpdateEdge(ctx context.Context, principal types.Principal, id string, patch types.EdgePatch) (*types.DependencyEdge, error) {
	tenantID := principal.TenantID
	now := s.now()

	var before, after *types.DependencyEdge
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}

		existing, err := tx.GetEdge(ctx, id, tenantID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
		}
		before = existing

		if patch.IsEmpty() {
			after = existing
			return nil
		}

		updated := *existing
		if patch.DependencyType != nil {
			if !types.ValidDependencyType(*patch.DependencyType) {
				return apierr.New(apierr.CodeInvalidRequest, fmt.Sprintf("unknown dependency_type %q", *patch.DependencyType))
			}
			updated.DependencyType = *patch.DependencyType
		}
		if patch.LagDays != nil {
			updated.LagDays = *patch.LagDays
		}
		if patch.MetadataSet {
			updated.Metadata = patch.Metadata
		}
		updated.UpdatedAt = now

		if err := tx.UpdateEdge(ctx, &updated); err != nil {
			return err
		}
		after = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return after, nil
	}

	s.publisher.PublishRecalc(ctx, &types.RecalcEvent{TenantID: tenantID, Reason: "dependency.updated", Timestamp: now})
	s.publisher.PublishDependencyEvent(ctx, &types.DependencyEvent{
		Kind:         types.EventUpdated,
		DependencyID: id,
		TenantID:     tenantID,
		UserID:       principal.ID,
		Payload:      types.EventPayload{Before: before, After: after, Patch: patchToMap(patch)},
		Timestamp:    now,
	})

	return after, nil
}

// DeleteEdge removes an edge after a read-check, emitting recalc and
// dependency.deleted events carrying the prior snapshot.
func (s *Service) DeleteEdge(ctx context.Context, principal types.Principal, id string) error {
	tenantID := principal.TenantID
	now := s.now()

	var deleted *types.DependencyEdge
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockTenant(ctx, tenantID); err != nil {
			return err
		}

		existing, err := tx.GetEdge(ctx, id, tenantID)
		if err != nil {
			return err
		}
		if existing == nil {
			return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
		}
		deleted = existing

		return tx.DeleteEdge(ctx, id, tenantID)
	})
	if err != nil {
		return err
	}

	s.publisher.PublishRecalc(ctx, &types.RecalcEvent{TenantID: tenantID, Reason: "dependency.deleted", Timestamp: now})
	s.publisher.PublishDependencyEvent(ctx, &types.DependencyEvent{
		Kind:         types.EventDeleted,
		DependencyID: id,
		TenantID:     tenantID,
		UserID:       principal.ID,
		Payload:      types.EventPayload{Before: deleted},
		Timestamp:    now,
	})

	return nil
}

// GetEdge reads a single edge by (id, tenant) through store.WithTx,
// without taking the tenant lock.
func (s *Service) GetEdge(ctx context.Context, principal types.Principal, id string) (*types.DependencyEdge, error) {
	var found *types.DependencyEdge
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		edge, err := tx.GetEdge(ctx, id, principal.TenantID)
		if err != nil {
			return err
		}
		found = edge
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
	}
	return found, nil
}

func patchToMap(p types.EdgePatch) map[string]interface{} {
	m := map[string]interface{}{}
	if p.DependencyType != nil {
		m["dependency_type"] = *p.DependencyType
	}
	if p.LagDays != nil {
		m["lag_days"] = *p.LagDays
	}
	if p.MetadataSet {
		m["metadata"] = p.Metadata
	}
	return m
}
