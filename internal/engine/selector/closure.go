package selector

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"go.trai.ch/kiln/internal/core/domain"
)

// closure expands the seed set with all transitive dependents recorded in
// the analysis. The graph is keyed by stable unit names, never assumed
// acyclic: strongly-connected components are computed explicitly and each
// component is an atomic unit of the decision — if any member must
// recompile, all members do.
func closure(
	analysis domain.Analysis,
	seeds map[domain.InternedString]struct{},
) map[domain.InternedString]struct{} {
	out := make(map[domain.InternedString]struct{}, len(seeds))
	if len(seeds) == 0 {
		return out
	}

	ids := make(map[domain.InternedString]int64)
	names := make([]domain.InternedString, 0, analysis.Len()+len(seeds))
	intern := func(u domain.InternedString) int64 {
		id, known := ids[u]
		if !known {
			id = int64(len(names))
			ids[u] = id
			names = append(names, u)
		}
		return id
	}

	for name := range analysis.Units {
		intern(name)
	}
	for u := range seeds {
		intern(u)
	}

	g := simple.NewDirectedGraph()
	for id := range int64(len(names)) {
		g.AddNode(simple.Node(id))
	}

	// Edges point from a dependency to its dependents, so reachability from
	// a changed unit yields everything that must follow it.
	type edge struct{ from, to int64 }
	var edges []edge
	for name, ua := range analysis.Units {
		to := ids[name]
		for _, dep := range ua.Dependencies {
			if dep == domain.WildcardDependency || dep == name {
				continue
			}
			from, known := ids[dep]
			if !known {
				// Dependency on something outside the analysis (platform
				// libraries); it cannot change through this root set.
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
			edges = append(edges, edge{from: from, to: to})
		}
	}

	// Condense into strongly-connected components.
	component := make([]int, len(names))
	sccs := topo.TarjanSCC(g)
	for i, scc := range sccs {
		for _, n := range scc {
			component[n.ID()] = i
		}
	}

	adjacency := make([][]int, len(sccs))
	for _, e := range edges {
		from, to := component[e.from], component[e.to]
		if from != to {
			adjacency[from] = append(adjacency[from], to)
		}
	}

	// BFS over components starting from every component containing a seed.
	visited := make([]bool, len(sccs))
	var queue []int
	for u := range seeds {
		c := component[ids[u]]
		if !visited[c] {
			visited[c] = true
			queue = append(queue, c)
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[c] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	for i, scc := range sccs {
		if !visited[i] {
			continue
		}
		for _, n := range scc {
			out[names[n.ID()]] = struct{}{}
		}
	}
	return out
}
