package graph

import (
	"fmt"
	"sort"

	"github.com/getailigned/dependency-service/internal/types"
)

// maxReachabilityDepth bounds the wouldCreateCycle probe so a pathological
// graph cannot turn a single edge-mutation request into an unbounded scan
// (spec.md §4.3).
const maxReachabilityDepth = 20

// WouldCreateCycle decides whether adding an edge fromID -> toID would
// close a cycle, without materializing the whole graph: it searches the
// already-stored edges for a path from toID back to fromID. Such a path,
// combined with the new edge, would close the loop.
//
// On a hit it returns one representative chain: fromID, toID, ..., fromID
// (the loop closed). On a miss it returns false and a nil chain. Depth is
// bounded at maxReachabilityDepth.
func WouldCreateCycle(edges []*types.DependencyEdge, fromID, toID string) (bool, []string) {
	if fromID == toID {
		return true, []string{fromID, toID}
	}

	adjacency := make(map[string][]string, len(edges))
	for _, e := range edges {
		adjacency[e.FromID] = append(adjacency[e.FromID], e.ToID)
	}

	type frame struct {
		node  string
		depth int
	}

	visited := map[string]bool{toID: true}
	parent := map[string]string{}
	queue := []frame{{node: toID, depth: 0}}

	var found bool
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.node == fromID {
			found = true
			break
		}
		if cur.depth >= maxReachabilityDepth {
			continue
		}
		for _, next := range adjacency[cur.node] {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = cur.node
			queue = append(queue, frame{node: next, depth: cur.depth + 1})
		}
	}

	if !found {
		return false, nil
	}

	// Reconstruct toID -> ... -> fromID, then prepend fromID to close the
	// loop via the prospective new edge.
	var path []string
	for n := fromID; ; {
		path = append(path, n)
		if n == toID {
			break
		}
		n = parent[n]
	}
	// path is currently fromID, ..., toID (reversed order of discovery);
	// reverse it so it reads toID -> ... -> fromID, then prepend fromID.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	chain := append([]string{fromID}, path...)
	return true, chain
}

// color marks DFS visitation state for DetectCycles.
type color int

const (
	white color = iota // unvisited
	gray               // on stack
	black              // done
)

// CycleResult is the output of DetectCycles.
type CycleResult struct {
	HasCycles     bool       `json:"has_cycles"`
	Cycles        [][]string `json:"cycles"`
	AffectedNodes []string   `json:"affected_nodes"`
	Suggestions   []string   `json:"suggestions"`
}

// dfsFrame is one stack frame of the explicit-stack DFS in DetectCycles:
// the node being explored, its sorted successor ids, and how far through
// them this frame has gotten.
type dfsFrame struct {
	node       string
	successors []string
	next       int
}

func sortedSuccessorIDs(g *types.Graph, node string) []string {
	successors := make([]string, 0, len(g.Successors[node]))
	for _, e := range g.Successors[node] {
		successors = append(successors, e.ToID)
	}
	sort.Strings(successors)
	return successors
}

// DetectCycles runs a classic iterative three-colour DFS over g, recording
// every cycle it discovers (not just the first) without stopping on the
// first hit. An explicit stack of dfsFrame replaces recursion, per the
// same stack-overflow-avoidance requirement that drove topologicalOrder's
// Kahn's-algorithm traversal. affected_nodes is the union of every node
// appearing in any cycle; suggestions are mechanically derived strings
// (see suggestionsForCycles).
func DetectCycles(g *types.Graph) *CycleResult {
	result := &CycleResult{}

	colors := make(map[string]color, len(g.Nodes))
	for id := range g.Nodes {
		colors[id] = white
	}

	// Deterministic traversal order so results are stable across runs
	// over the same stored graph (spec.md §8.1 determinism).
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var path []string
	pathIndex := make(map[string]int)
	var stack []dfsFrame

	pushNode := func(node string) {
		colors[node] = gray
		path = append(path, node)
		pathIndex[node] = len(path) - 1
		stack = append(stack, dfsFrame{node: node, successors: sortedSuccessorIDs(g, node)})
	}

	for _, root := range ids {
		if colors[root] != white {
			continue
		}
		pushNode(root)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next >= len(top.successors) {
				colors[top.node] = black
				path = path[:len(path)-1]
				delete(pathIndex, top.node)
				stack = stack[:len(stack)-1]
				continue
			}

			next := top.successors[top.next]
			top.next++

			switch colors[next] {
			case white:
				pushNode(next)
			case gray:
				// Back edge: next is on the current stack. Slice the path
				// from next's first occurrence to the end and close the loop.
				start := pathIndex[next]
				cycle := append([]string{}, path[start:]...)
				cycle = append(cycle, next)
				result.Cycles = append(result.Cycles, cycle)
			case black:
				// cross/forward edge, not a cycle
			}
		}
	}

	result.HasCycles = len(result.Cycles) > 0

	affected := map[string]bool{}
	for _, c := range result.Cycles {
		for _, n := range c {
			affected[n] = true
		}
	}
	for n := range affected {
		result.AffectedNodes = append(result.AffectedNodes, n)
	}
	sort.Strings(result.AffectedNodes)

	result.Suggestions = suggestionsForCycles(g, result.Cycles)

	return result
}

// suggestionsForCycles mechanically derives a human-readable mitigation
// string per discovered cycle: name the chain and propose removing one
// edge to break it (spec.md §8.2).
func suggestionsForCycles(g *types.Graph, cycles [][]string) []string {
	var out []string
	for _, cycle := range cycles {
		if len(cycle) < 2 {
			continue
		}
		title := func(id string) string {
			if n := g.Nodes[id]; n != nil && n.Title != "" {
				return n.Title
			}
			return id
		}
		chain := title(cycle[0])
		for _, id := range cycle[1:] {
			chain += " -> " + title(id)
		}
		out = append(out, fmt.Sprintf(
			"Cycle detected: %s. Remove or reverse the dependency between %q and %q to break it.",
			chain, title(cycle[len(cycle)-2]), title(cycle[len(cycle)-1]),
		))
	}
	return out
}
