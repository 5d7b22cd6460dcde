// Package batch schedules many conversions over a bounded worker pool.
//
// A Scheduler holds an arena of tasks keyed by id. Start launches a single
// coordinator goroutine that is the only writer of task state once the run
// begins: it pops tasks from the dispatch queue, hands them to at most W
// worker goroutines, and applies their results as they arrive on a channel.
// Workers never touch the arena. Readers (Task, Tasks, Stats) take copies
// under a read lock.
//
// Dispatch order comes from Optimize, which interleaves format pairs
// round-robin (largest group first) so a single task of a rare pair is not
// stuck behind hundreds of tasks of a common one.
//
// Stop is cooperative: no new tasks are dispatched, the run context handed to
// workers is cancelled, and in-flight tasks are allowed to finish within the
// stop timeout. Tasks never dispatched stay pending and run on the next Start.
package batch
