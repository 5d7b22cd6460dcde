package batch

import (
	"slices"

	"transmute/internal/formats"
)

// Optimize orders tasks for dispatch: tasks are grouped by format pair,
// groups are ordered by descending size (ties keep first appearance), and the
// result interleaves the groups round-robin. Order within a group is kept.
func Optimize(tasks []Task) []Task {
	if len(tasks) < 2 {
		return slices.Clone(tasks)
	}

	type group struct {
		pair  formats.Pair
		tasks []Task
	}
	var groups []*group
	index := make(map[formats.Pair]*group)
	for _, task := range tasks {
		pair := task.Pair()
		g, ok := index[pair]
		if !ok {
			g = &group{pair: pair}
			index[pair] = g
			groups = append(groups, g)
		}
		g.tasks = append(g.tasks, task)
	}

	slices.SortStableFunc(groups, func(a, b *group) int {
		return len(b.tasks) - len(a.tasks)
	})

	out := make([]Task, 0, len(tasks))
	for round := 0; len(out) < len(tasks); round++ {
		for _, g := range groups {
			if round < len(g.tasks) {
				out = append(out, g.tasks[round])
			}
		}
	}
	return out
}
