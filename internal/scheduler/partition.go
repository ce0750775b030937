package scheduler

import "github.com/pairup/match-engine/internal/queue"

// groupByIntent splits a hydrated batch into per-intent groups, preserving
// the batch's FIFO order within each group. Users are only paired inside
// their own intent group.
func groupByIntent(cands []*candidate) map[queue.Intent][]*candidate {
	groups := make(map[queue.Intent][]*candidate)
	for _, c := range cands {
		groups[c.entry.Intent] = append(groups[c.entry.Intent], c)
	}
	return groups
}

// orderByGenderPriority interleaves an intent group so the configured
// priority gender classes are scanned first, in their listed order; everyone
// else follows in original FIFO order. The ordering is stable: within a
// class, enqueue order is preserved.
func orderByGenderPriority(group []*candidate, priority []queue.Gender) []*candidate {
	if len(priority) == 0 || len(group) < 2 {
		return group
	}

	rank := make(map[queue.Gender]int, len(priority))
	for i, g := range priority {
		rank[g] = i
	}

	ordered := make([]*candidate, 0, len(group))
	for _, g := range priority {
		for _, c := range group {
			if c.entry.Gender == g {
				ordered = append(ordered, c)
			}
		}
	}
	for _, c := range group {
		if _, prioritized := rank[c.entry.Gender]; !prioritized {
			ordered = append(ordered, c)
		}
	}
	return ordered
}
