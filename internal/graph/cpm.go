package graph

import (
	"sort"
	"time"

	"github.com/getailigned/dependency-service/internal/types"
)

// CPMResult is the output of Compute: the total project duration and the
// ids of every critical node, in deterministic order.
type CPMResult struct {
	TotalDurationDays int      `json:"total_duration_days"`
	CriticalNodeIDs   []string `json:"critical_node_ids"`
}

// Compute runs the forward and backward CPM passes over g and annotates
// every node and edge in place (spec.md §4.4). g is assumed acyclic, as
// the edge lifecycle keeps every tenant's stored edges; Compute does not
// check this itself. An iterative topological
// traversal is used instead of recursion, per spec.md §9's guidance to
// avoid stack overflow on large graphs — equivalent to the source's
// memoised depth-first recursion.
func Compute(g *types.Graph, now time.Time) *CPMResult {
	order := topologicalOrder(g)

	forwardPass(g, order)
	total := projectCompletion(g)
	backwardPass(g, order)
	annotateSlackAndCriticality(g)
	annotateCalendarTimes(g, now)

	var critical []string
	for _, id := range order {
		if g.Nodes[id].IsCritical {
			critical = append(critical, id)
		}
	}
	sort.Strings(critical)

	return &CPMResult{TotalDurationDays: total, CriticalNodeIDs: critical}
}

// topologicalOrder returns node ids in an order that respects the DAG,
// via Kahn's algorithm. Any order respecting edge direction is acceptable
// per spec.md §4.4; ties are broken lexicographically for determinism.
func topologicalOrder(g *types.Graph) []string {
	indegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		indegree[id] = 0
	}
	for _, e := range g.Edges {
		indegree[e.ToID]++
	}

	var ready []string
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var newlyReady []string
		for _, e := range g.Successors[n] {
			indegree[e.ToID]--
			if indegree[e.ToID] == 0 {
				newlyReady = append(newlyReady, e.ToID)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}

	return order
}

// forwardPass computes ES/EF for every node in topological order. A node
// with no predecessors starts at 0 regardless of any negative lag
// elsewhere in the graph (spec.md §4.4 edge cases); a node with
// predecessors takes the maximum of EF(p) + lag, which may be negative.
func forwardPass(g *types.Graph, order []string) {
	for _, id := range order {
		node := g.Nodes[id]
		es := 0
		for i, e := range g.Predecessors[id] {
			pred := g.Nodes[e.FromID]
			candidate := pred.EarliestFinish + e.LagDays
			if i == 0 || candidate > es {
				es = candidate
			}
		}
		node.EarliestStart = es
		node.EarliestFinish = es + node.DurationDays
	}
}

// projectCompletion returns T, the maximum earliest-finish over all nodes.
func projectCompletion(g *types.Graph) int {
	total := 0
	for _, node := range g.Nodes {
		if node.EarliestFinish > total {
			total = node.EarliestFinish
		}
	}
	return total
}

// backwardPass computes LF/LS in reverse topological order. A sink (no
// successors) anchors LF at its own EF rather than the global project
// completion T — this is a deliberate compatibility preservation
// (spec.md §9, "sink anchoring"): with multiple sinks of differing EF,
// each receives zero slack and is reported critical even when only the
// latest-finishing sink genuinely constrains the plan.
func backwardPass(g *types.Graph, order []string) {
	for i := len(order) - 1; i >= 0; i-- {
		node := g.Nodes[order[i]]
		successors := g.Successors[order[i]]
		if len(successors) == 0 {
			node.LatestFinish = node.EarliestFinish
		} else {
			lf := 0
			for i, e := range successors {
				succ := g.Nodes[e.ToID]
				candidate := succ.LatestStart - e.LagDays
				if i == 0 || candidate < lf {
					lf = candidate
				}
			}
			node.LatestFinish = lf
		}
		node.LatestStart = node.LatestFinish - node.DurationDays
	}
}

func annotateSlackAndCriticality(g *types.Graph) {
	for _, node := range g.Nodes {
		node.SlackDays = node.LatestStart - node.EarliestStart
		node.IsCritical = node.SlackDays == 0
	}
	for _, e := range g.Edges {
		from := g.Nodes[e.FromID]
		to := g.Nodes[e.ToID]
		e.IsCritical = from.IsCritical && to.IsCritical
	}
}

const dayDuration = 24 * time.Hour

func annotateCalendarTimes(g *types.Graph, now time.Time) {
	for _, node := range g.Nodes {
		node.EarliestStartAt = now.Add(time.Duration(node.EarliestStart) * dayDuration)
		node.EarliestFinishAt = now.Add(time.Duration(node.EarliestFinish) * dayDuration)
		node.LatestStartAt = now.Add(time.Duration(node.LatestStart) * dayDuration)
		node.LatestFinishAt = now.Add(time.Duration(node.LatestFinish) * dayDuration)
	}
}
