// Package engine is the entry point for single conversions: it resolves a
// (source, target) request against the registry into an identity copy, a
// direct converter, or a chained executor, and runs it.
//
// Every converter call the engine makes is timed and reported to the metrics
// recorder exactly once, whether it is a direct conversion or one step of a
// chain. Engine also implements batch.Runner so the scheduler dispatches
// through the same resolution path.
package engine
