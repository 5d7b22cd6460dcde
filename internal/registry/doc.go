// Package registry owns the converter capabilities known to a process, the
// format reachability graph built from them, and shortest-path resolution over
// that graph.
//
// Capabilities arrive either through explicit Register calls or through
// Discover, which walks a Catalog of converter descriptors, loads each one,
// and records every (source, target) pair it covers. A descriptor that fails
// to load is logged and skipped so one broken provider never hides the rest.
//
// The graph is an immutable snapshot swapped atomically on Rebuild, Discover,
// and Reinitialize; readers never take a lock to walk it. FindPath runs a
// breadth-first search that expands neighbors in lexicographic order, so the
// returned path is both minimal in hops and deterministic.
package registry
