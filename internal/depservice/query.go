package depservice

import (
	"context"

	"github.com/getailigned/dependency-service/internal/graph"
	"github.com/getailigned/dependency-service/internal/types"
)

// GraphResult is the response for the graph query operation: a
// materialized, CPM-annotated graph plus its scalar CPM totals (spec.md
// §4.2, §4.4).
type GraphResult struct {
	Graph *types.Graph     `json:"graph"`
	CPM   *graph.CPMResult `json:"cpm"`
}

// Graph materializes the tenant's graph (optionally restricted to
// nodeIDs) and runs the CPM pass over it. It performs no writes and
// therefore runs outside any store transaction.
func (s *Service) Graph(ctx context.Context, principal types.Principal, nodeIDs []string) (*GraphResult, error) {
	var filter map[string]bool
	if nodeIDs != nil {
		filter = make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			filter[id] = true
		}
	}

	items, err := s.store.WorkItems(ctx, principal.TenantID, nodeIDs)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.Edges(ctx, principal.TenantID, filter)
	if err != nil {
		return nil, err
	}

	g := graph.Build(principal.TenantID, items, edges, filter)
	cpm := graph.Compute(g, s.now())

	return &GraphResult{Graph: g, CPM: cpm}, nil
}

// AnalysisResult is the response for the analysis query operation: the
// bottleneck list plus the two derived scalar risk measures (spec.md
// §4.5, §8.2).
type AnalysisResult struct {
	Bottlenecks           []*graph.Bottleneck `json:"bottlenecks"`
	RiskScore             float64             `json:"risk_score"`
	CompletionProbability float64             `json:"completion_probability"`
}

// Analysis materializes the full (unfiltered) tenant graph, runs CPM, and
// derives bottlenecks and risk scores from the result.
func (s *Service) Analysis(ctx context.Context, principal types.Principal) (*AnalysisResult, error) {
	res, err := s.Graph(ctx, principal, nil)
	if err != nil {
		return nil, err
	}

	risk := graph.RiskScore(res.Graph)
	return &AnalysisResult{
		Bottlenecks:           graph.Bottlenecks(res.Graph),
		RiskScore:             risk,
		CompletionProbability: graph.CompletionProbability(risk),
	}, nil
}

// Cycles materializes the full tenant graph and runs the cycle detector
// over it (spec.md §4.3). In steady-state operation this should always
// report HasCycles == false, since createEdge refuses any mutation that
// would introduce one; it exists as a standalone diagnostic endpoint
// (spec.md §6) and as a defense against cycles introduced outside this
// service's own write path.
func (s *Service) Cycles(ctx context.Context, principal types.Principal) (*graph.CycleResult, error) {
	items, err := s.store.WorkItems(ctx, principal.TenantID, nil)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.Edges(ctx, principal.TenantID, nil)
	if err != nil {
		return nil, err
	}

	g := graph.Build(principal.TenantID, items, edges, nil)
	return graph.DetectCycles(g), nil
}
