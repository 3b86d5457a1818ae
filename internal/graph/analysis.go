package graph

import (
	"sort"

	"github.com/getailigned/dependency-service/internal/types"
)

// Bottleneck is one schedule risk point: a critical node with at least one
// qualifying risk factor (spec.md §4.5).
type Bottleneck struct {
	WorkItemID            string   `json:"work_item_id"`
	Title                 string   `json:"title"`
	DelayImpactDays       int      `json:"delay_impact_days"`
	RiskFactors           []string `json:"risk_factors"`
	MitigationSuggestions []string `json:"mitigation_suggestions"`
}

// mitigationByTag is the fixed mechanical mapping from a risk-factor tag to
// its mitigation suggestion (spec.md §8.2).
var mitigationByTag = map[string]string{
	"High dependency count": "Consider splitting this work item or parallelizing its predecessors to reduce fan-in.",
	"Blocks many items":     "Prioritize this item — its completion unblocks a large number of dependents.",
	"Currently blocked":     "Resolve the external blocker before this item can re-enter the critical path.",
	"Long duration":         "Break this item into smaller subtasks to shorten its contribution to the critical path.",
}

// Bottlenecks iterates every node in g and returns those that are critical
// (zero slack) and trip at least one of: indegree > 3, outdegree > 3,
// status == "blocked", duration_days > 30. Results are sorted by
// delay_impact_days descending.
func Bottlenecks(g *types.Graph) []*Bottleneck {
	var out []*Bottleneck

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := g.Nodes[id]
		if !node.IsCritical {
			continue
		}

		indegree := len(g.Predecessors[id])
		outdegree := len(g.Successors[id])

		var tags []string
		if indegree > 3 {
			tags = append(tags, "High dependency count")
		}
		if outdegree > 3 {
			tags = append(tags, "Blocks many items")
		}
		if node.Status == types.StatusBlocked {
			tags = append(tags, "Currently blocked")
		}
		if node.DurationDays > 30 {
			tags = append(tags, "Long duration")
		}
		if len(tags) == 0 {
			continue
		}

		suggestions := make([]string, 0, len(tags))
		for _, tag := range tags {
			if s, ok := mitigationByTag[tag]; ok {
				suggestions = append(suggestions, s)
			}
		}

		out = append(out, &Bottleneck{
			WorkItemID:            id,
			Title:                 node.Title,
			DelayImpactDays:       node.DurationDays,
			RiskFactors:           tags,
			MitigationSuggestions: suggestions,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DelayImpactDays > out[j].DelayImpactDays
	})

	return out
}

// RiskScore computes the graph's overall schedule risk in [0, 1]:
// min(1, (0.3*|critical| + 0.5*|blocked| + 0.2*|long|) / N). N=0 yields 0.
func RiskScore(g *types.Graph) float64 {
	n := len(g.Nodes)
	if n == 0 {
		return 0
	}

	var critical, blocked, long int
	for _, node := range g.Nodes {
		if node.IsCritical {
			critical++
		}
		if node.Status == types.StatusBlocked {
			blocked++
		}
		if node.DurationDays > 30 {
			long++
		}
	}

	score := (0.3*float64(critical) + 0.5*float64(blocked) + 0.2*float64(long)) / float64(n)
	if score > 1 {
		score = 1
	}
	return score
}

// CompletionProbability derives a naive completion probability from the
// risk score: max(0.1, 1 - risk).
func CompletionProbability(riskScore float64) float64 {
	p := 1 - riskScore
	if p < 0.1 {
		return 0.1
	}
	return p
}
