package registry

import (
	"slices"

	"transmute/internal/formats"
)

// Graph is a read-only adjacency snapshot: format -> sorted direct targets.
type Graph struct {
	adjacency  map[formats.Format][]formats.Format
	generation uint64
}

func buildGraph(pairs []formats.Pair, generation uint64) *Graph {
	adjacency := make(map[formats.Format][]formats.Format)
	for _, p := range pairs {
		if p.Identity() {
			continue
		}
		if !slices.Contains(adjacency[p.Source], p.Target) {
			adjacency[p.Source] = append(adjacency[p.Source], p.Target)
		}
	}
	for source := range adjacency {
		slices.Sort(adjacency[source])
	}
	return &Graph{adjacency: adjacency, generation: generation}
}

// Neighbors returns the formats directly reachable from f, sorted.
func (g *Graph) Neighbors(f formats.Format) []formats.Format {
	if g == nil {
		return nil
	}
	return slices.Clone(g.adjacency[formats.Normalize(string(f))])
}

// HasEdge reports whether a direct capability source->target exists.
func (g *Graph) HasEdge(source, target formats.Format) bool {
	if g == nil {
		return false
	}
	_, found := slices.BinarySearch(g.adjacency[formats.Normalize(string(source))], formats.Normalize(string(target)))
	return found
}

// Formats returns every format appearing in the graph as a source or target.
func (g *Graph) Formats() []formats.Format {
	if g == nil {
		return nil
	}
	seen := make(map[formats.Format]struct{})
	for source, targets := range g.adjacency {
		seen[source] = struct{}{}
		for _, t := range targets {
			seen[t] = struct{}{}
		}
	}
	out := make([]formats.Format, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Edges returns the number of direct capabilities in the snapshot.
func (g *Graph) Edges() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, targets := range g.adjacency {
		n += len(targets)
	}
	return n
}

// Generation identifies the registry rebuild that produced this snapshot.
func (g *Graph) Generation() uint64 {
	if g == nil {
		return 0
	}
	return g.generation
}

// ShortestPath runs a breadth-first search from source to target. Identity
// yields [source]; an unreachable target yields false.
func (g *Graph) ShortestPath(source, target formats.Format) (formats.Path, bool) {
	source = formats.Normalize(string(source))
	target = formats.Normalize(string(target))
	if source == "" || target == "" {
		return nil, false
	}
	if source == target {
		return formats.Path{source}, true
	}
	if g.HasEdge(source, target) {
		return formats.Path{source, target}, true
	}

	parent := map[formats.Format]formats.Format{source: ""}
	queue := []formats.Format{source}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[current] {
			if _, visited := parent[next]; visited {
				continue
			}
			parent[next] = current
			if next == target {
				return unwind(parent, source, target), true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

func unwind(parent map[formats.Format]formats.Format, source, target formats.Format) formats.Path {
	var path formats.Path
	for f := target; ; f = parent[f] {
		path = append(path, f)
		if f == source {
			break
		}
	}
	slices.Reverse(path)
	return path
}
