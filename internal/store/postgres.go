package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/getailigned/dependency-service/internal/apierr"
	"github.com/getailigned/dependency-service/internal/types"
)

// PoolConfig configures the bounded connection pool (spec.md §5: target 20
// connections, 30s idle timeout, 2s acquisition timeout).
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnIdleTime time.Duration
	AcquireTimeout  time.Duration
}

// DefaultPoolConfig returns the targets named in spec.md §5.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		MaxConns:        20,
		MaxConnIdleTime: 30 * time.Second,
		AcquireTimeout:  2 * time.Second,
	}
}

// PostgresStore is the store.Store implementation over a pgxpool.Pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	cfg  PoolConfig
}

// NewPostgresStore opens the bounded connection pool described by cfg.
func NewPostgresStore(ctx context.Context, cfg PoolConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open store pool: %w", err)
	}
	return &PostgresStore{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool. Safe to call once during graceful
// shutdown (spec.md §6, process lifecycle).
func (s *PostgresStore) Close() { s.pool.Close() }

// WithTx begins a transaction, invokes fn, and commits on success or rolls
// back on any error returned by fn (or on panic recovery, handled by the
// deferred Rollback no-op after Commit). Acquisition honors cfg.AcquireTimeout.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()

	pgxTx, err := s.pool.BeginTx(acquireCtx, pgx.TxOptions{})
	if err != nil {
		return apierr.Internal("begin transaction", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = pgxTx.Rollback(ctx)
		}
	}()

	if err := fn(ctx, &postgresTx{tx: pgxTx}); err != nil {
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return apierr.Internal("commit transaction", err)
	}
	committed = true
	return nil
}

func (s *PostgresStore) WorkItems(ctx context.Context, tenantID string, ids []string) ([]*types.WorkItem, error) {
	var rows pgx.Rows
	var err error
	if ids == nil {
		rows, err = s.pool.Query(ctx, `
			SELECT id, tenant_id, title, type, status, estimated_duration_days
			FROM work_items WHERE tenant_id = $1`, tenantID)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, tenant_id, title, type, status, estimated_duration_days
			FROM work_items WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
	}
	if err != nil {
		return nil, apierr.Internal("query work items", err)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

func (s *PostgresStore) Edges(ctx context.Context, tenantID string, touching map[string]bool) ([]*types.DependencyEdge, error) {
	if touching == nil {
		rows, err := s.pool.Query(ctx, `
			SELECT id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata
			FROM dependency_edges WHERE tenant_id = $1`, tenantID)
		if err != nil {
			return nil, apierr.Internal("query edges", err)
		}
		defer rows.Close()
		return scanEdges(rows)
	}

	ids := make([]string, 0, len(touching))
	for id := range touching {
		ids = append(ids, id)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata
		FROM dependency_edges
		WHERE tenant_id = $1 AND (from_id = ANY($2) OR to_id = ANY($2))`, tenantID, ids)
	if err != nil {
		return nil, apierr.Internal("query edges touching filter", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// postgresTx implements Tx over a single pgx.Tx.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockTenant(ctx context.Context, tenantID string) error {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tenantID))
	key := int64(h.Sum64())

	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return apierr.Internal("acquire tenant advisory lock", err)
	}
	return nil
}

func (t *postgresTx) WorkItemsExist(ctx context.Context, tenantID string, ids []string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM work_items WHERE tenant_id = $1 AND id = ANY($2)`, tenantID, ids)
	if err != nil {
		return nil, apierr.Internal("check work items exist", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierr.Internal("scan work item id", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internal("iterate work item ids", err)
	}

	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *postgresTx) FindEdgeByFromTo(ctx context.Context, tenantID, fromID, toID string) (*types.DependencyEdge, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata
		FROM dependency_edges WHERE tenant_id = $1 AND from_id = $2 AND to_id = $3`, tenantID, fromID, toID)
	edge, err := scanEdgeRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("find edge by from/to", err)
	}
	return edge, nil
}

func (t *postgresTx) GetEdge(ctx context.Context, id, tenantID string) (*types.DependencyEdge, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata
		FROM dependency_edges WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	edge, err := scanEdgeRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Internal("get edge", err)
	}
	return edge, nil
}

func (t *postgresTx) TenantEdges(ctx context.Context, tenantID string) ([]*types.DependencyEdge, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata
		FROM dependency_edges WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, apierr.Internal("query tenant edges", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

func (t *postgresTx) InsertEdge(ctx context.Context, edge *types.DependencyEdge) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO dependency_edges (id, tenant_id, from_id, to_id, dependency_type, lag_days, created_at, created_by, updated_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		edge.ID, edge.TenantID, edge.FromID, edge.ToID, edge.DependencyType, edge.LagDays,
		edge.CreatedAt, edge.CreatedBy, edge.UpdatedAt, edgeMetadataOrEmpty(edge))
	if err != nil {
		return apierr.Internal("insert edge", err)
	}
	return nil
}

func (t *postgresTx) UpdateEdge(ctx context.Context, edge *types.DependencyEdge) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE dependency_edges
		SET dependency_type = $1, lag_days = $2, metadata = $3, updated_at = $4
		WHERE id = $5 AND tenant_id = $6`,
		edge.DependencyType, edge.LagDays, edgeMetadataOrEmpty(edge), edge.UpdatedAt, edge.ID, edge.TenantID)
	if err != nil {
		return apierr.Internal("update edge", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
	}
	return nil
}

func (t *postgresTx) DeleteEdge(ctx context.Context, id, tenantID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM dependency_edges WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return apierr.Internal("delete edge", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.New(apierr.CodeDependencyNotFound, "dependency not found")
	}
	return nil
}

func edgeMetadataOrEmpty(e *types.DependencyEdge) []byte {
	if len(e.Metadata) == 0 {
		return []byte("{}")
	}
	return e.Metadata
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdgeRow(row rowScanner) (*types.DependencyEdge, error) {
	var e types.DependencyEdge
	var metadata []byte
	if err := row.Scan(&e.ID, &e.TenantID, &e.FromID, &e.ToID, &e.DependencyType, &e.LagDays,
		&e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &metadata); err != nil {
		return nil, err
	}
	e.Metadata = json.RawMessage(metadata)
	return &e, nil
}

func scanEdges(rows pgx.Rows) ([]*types.DependencyEdge, error) {
	var edges []*types.DependencyEdge
	for rows.Next() {
		e, err := scanEdgeRow(rows)
		if err != nil {
			return nil, apierr.Internal("scan edge", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internal("iterate edges", err)
	}
	return edges, nil
}

func scanWorkItems(rows pgx.Rows) ([]*types.WorkItem, error) {
	var items []*types.WorkItem
	for rows.Next() {
		var wi types.WorkItem
		var duration *int
		if err := rows.Scan(&wi.ID, &wi.TenantID, &wi.Title, &wi.Type, &wi.Status, &duration); err != nil {
			return nil, apierr.Internal("scan work item", err)
		}
		wi.EstimatedDurationDays = duration
		items = append(items, &wi)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Internal("iterate work items", err)
	}
	return items, nil
}
