// Package types defines the data model shared across the dependency graph
// engine: work items, dependency edges, the derived in-memory graph, and
// the events emitted on mutation.
package types

import (
	"encoding/json"
	"time"
)

// WorkItemType is the categorical type of a WorkItem.
type WorkItemType string

const (
	WorkItemObjective WorkItemType = "objective"
	WorkItemStrategy  WorkItemType = "strategy"
	WorkItemInitiative WorkItemType = "initiative"
	WorkItemTask      WorkItemType = "task"
	WorkItemSubtask   WorkItemType = "subtask"
)

// StatusBlocked is the one status value the core treats semantically; all
// other status strings are opaque pass-through values owned by the work
// item lifecycle (external to this service).
const StatusBlocked = "blocked"

// DefaultDurationDays returns the default duration, in days, used when a
// work item carries no explicit estimated_duration_days.
func (t WorkItemType) DefaultDurationDays() int {
	switch t {
	case WorkItemObjective:
		return 90
	case WorkItemStrategy:
		return 60
	case WorkItemInitiative:
		return 30
	case WorkItemTask:
		return 7
	case WorkItemSubtask:
		return 3
	default:
		return 7
	}
}

// DependencyType is one of the four CPM edge semantics. The CPM engine
// (internal/graph) treats every edge as finish_to_start regardless of this
// field; see spec.md §9 for the compatibility note.
type DependencyType string

const (
	FinishToStart  DependencyType = "finish_to_start"
	StartToStart   DependencyType = "start_to_start"
	FinishToFinish DependencyType = "finish_to_finish"
	StartToFinish  DependencyType = "start_to_finish"
)

// ValidDependencyType reports whether t is one of the four recognized
// dependency types.
func ValidDependencyType(t DependencyType) bool {
	switch t {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	default:
		return false
	}
}

// WorkItem is a read-only input to the dependency graph engine. Its
// lifecycle (creation, status transitions) is owned by an external system;
// the core only reads id, type, status, and duration.
type WorkItem struct {
	ID                    string       `json:"id"`
	TenantID              string       `json:"tenant_id"`
	Title                 string       `json:"title"`
	Type                  WorkItemType `json:"type"`
	Status                string       `json:"status"`
	EstimatedDurationDays *int         `json:"estimated_duration_days,omitempty"`
}

// DurationDays resolves the effective duration for CPM: the explicit
// estimate if present, else the type default.
func (w *WorkItem) DurationDays() int {
	if w.EstimatedDurationDays != nil {
		return *w.EstimatedDurationDays
	}
	return w.Type.DefaultDurationDays()
}

// DependencyEdge is a stored edge between two work items in the same
// tenant. (tenant_id, from_id, to_id) is unique; the full edge set per
// tenant must remain acyclic at all times.
type DependencyEdge struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	FromID         string          `json:"from_id"`
	ToID           string          `json:"to_id"`
	DependencyType DependencyType  `json:"dependency_type"`
	LagDays        int             `json:"lag_days"`
	CreatedAt      time.Time       `json:"created_at"`
	CreatedBy      string          `json:"created_by"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// EdgePatch carries the fields of an updateEdge request; a nil field means
// "leave unchanged."
type EdgePatch struct {
	DependencyType *DependencyType `json:"dependency_type,omitempty"`
	LagDays        *int            `json:"lag_days,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	MetadataSet    bool            `json:"-"` // true when the caller explicitly supplied metadata
}

// IsEmpty reports whether the patch carries no fields at all, in which
// case updateEdge is a no-op that returns the edge unchanged and emits no
// event (spec.md §4.1).
func (p *EdgePatch) IsEmpty() bool {
	return p.DependencyType == nil && p.LagDays == nil && !p.MetadataSet
}

// GraphNode is a WorkItem enriched with CPM outputs. Fields below
// EarliestStart are zero until a CPM pass has run over the graph
// containing this node.
type GraphNode struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Type         WorkItemType `json:"type"`
	Status       string       `json:"status"`
	DurationDays int          `json:"duration_days"`

	EarliestStart  int  `json:"earliest_start"`
	EarliestFinish int  `json:"earliest_finish"`
	LatestStart    int  `json:"latest_start"`
	LatestFinish   int  `json:"latest_finish"`
	SlackDays      int  `json:"slack_days"`
	IsCritical     bool `json:"is_critical"`

	// Calendar times, derived from the integer day offsets above by adding
	// to a project origin ("now"). Convenience outputs only.
	EarliestStartAt  time.Time `json:"earliest_start_at"`
	EarliestFinishAt time.Time `json:"earliest_finish_at"`
	LatestStartAt    time.Time `json:"latest_start_at"`
	LatestFinishAt   time.Time `json:"latest_finish_at"`
}

// GraphEdge mirrors a stored DependencyEdge plus the derived IsCritical
// flag (both endpoints critical).
type GraphEdge struct {
	ID             string          `json:"id"`
	FromID         string          `json:"from_id"`
	ToID           string          `json:"to_id"`
	DependencyType DependencyType  `json:"dependency_type"`
	LagDays        int             `json:"lag_days"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	IsCritical     bool            `json:"is_critical"`
}

// Graph is the in-memory, per-request materialization a single tenant's
// (optionally filtered) nodes and edges. It is owned by the request that
// built it and discarded on completion; it is never shared across
// goroutines that did not receive it directly.
type Graph struct {
	TenantID string                `json:"tenant_id"`
	Nodes    map[string]*GraphNode `json:"nodes"`
	Edges    []*GraphEdge          `json:"edges"`

	// Adjacency, built once by the builder for O(1) traversal by the CPM
	// engine and cycle detector. Not part of the wire response.
	Successors   map[string][]*GraphEdge `json:"-"`
	Predecessors map[string][]*GraphEdge `json:"-"`
}

// EventKind enumerates the three mutation events a successful edge
// lifecycle call emits exactly one of.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// DependencyEvent is the payload published to the "dependencies" exchange
// under routing key "dependency.{kind}" (spec.md §6).
type DependencyEvent struct {
	Kind         EventKind   `json:"kind"`
	DependencyID string      `json:"dependency_id"`
	TenantID     string      `json:"tenant_id"`
	UserID       string      `json:"user_id"`
	Payload      EventPayload `json:"payload"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EventPayload carries before/after snapshots for updated events, and the
// single relevant snapshot for created/deleted events.
type EventPayload struct {
	Before *DependencyEdge        `json:"before,omitempty"`
	After  *DependencyEdge        `json:"after,omitempty"`
	Patch  map[string]interface{} `json:"patch,omitempty"`
}

// RecalcEvent is published to the "system" exchange under routing key
// "critical_path.recalculate" after every successful mutation.
type RecalcEvent struct {
	TenantID  string    `json:"tenant_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Principal is the authenticated caller deposited on the request by the
// (external) auth middleware. Only TenantID and UserID are consumed by the
// core; Roles/Email are carried through for handlers that need them.
type Principal struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles,omitempty"`
	Email    string   `json:"email,omitempty"`
}
