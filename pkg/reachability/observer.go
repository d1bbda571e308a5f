package reachability

import (
	"cmp"
	"slices"
)

// Delta is one change of the maintained relation.
type Delta struct {
	Pair
	// Inserted is true if the pair became reachable, false if it stopped being reachable.
	Inserted bool
}

// Observer is notified after every graph mutation that changed the relation, with the
// changed pairs ordered retractions first, then by source and target.
type Observer interface {
	ReachabilityChanged(deltas []Delta)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(deltas []Delta)

func (f ObserverFunc) ReachabilityChanged(deltas []Delta) {
	f(deltas)
}

// snapshot captures the rows that a mutation of the component edges leaving r may change:
// the rows of r and of every ancestor of r. Every member of a component shares the row of
// its root, so the snapshot is kept per component.
type snapshot struct {
	members map[int64][]int64
	targets map[int64]map[int64]struct{}
}

func (e *Engine) snapshot(r int64) *snapshot {
	if len(e.observers) == 0 {
		return nil
	}
	s := &snapshot{
		members: map[int64][]int64{},
		targets: map[int64]map[int64]struct{}{},
	}
	for _, c := range e.ancestorsAndSelf(r) {
		members := make([]int64, 0, len(e.components.Members(c)))
		for m := range e.components.Members(c) {
			members = append(members, m)
		}
		s.members[c] = members
		s.targets[c] = e.targetNodes(c)
	}
	return s
}

// targetNodes returns every node reached by the members of the component r.
func (e *Engine) targetNodes(r int64) map[int64]struct{} {
	out := map[int64]struct{}{}
	if e.cyclic(r) {
		for m := range e.components.Members(r) {
			out[m] = struct{}{}
		}
	}
	for d := range e.desc[r] {
		for m := range e.components.Members(d) {
			out[m] = struct{}{}
		}
	}
	return out
}

func (e *Engine) publish(before *snapshot) {
	if before == nil {
		return
	}

	type transition struct {
		from, to int64
	}
	after := map[int64]map[int64]struct{}{}
	groups := map[transition][]int64{}
	for c, members := range before.members {
		for _, m := range members {
			t := transition{from: c, to: e.root(m)}
			groups[t] = append(groups[t], m)
		}
	}

	var deltas []Delta
	for t, sources := range groups {
		old := before.targets[t.from]
		cur, ok := after[t.to]
		if !ok {
			cur = e.targetNodes(t.to)
			after[t.to] = cur
		}
		for n := range old {
			if _, ok := cur[n]; !ok {
				for _, s := range sources {
					deltas = append(deltas, Delta{Pair: Pair{Source: s, Target: n}})
				}
			}
		}
		for n := range cur {
			if _, ok := old[n]; !ok {
				for _, s := range sources {
					deltas = append(deltas, Delta{Pair: Pair{Source: s, Target: n}, Inserted: true})
				}
			}
		}
	}
	if len(deltas) == 0 {
		return
	}

	slices.SortFunc(deltas, compareDeltas)
	for _, o := range e.observers {
		o.ReachabilityChanged(deltas)
	}
}

func compareDeltas(a, b Delta) int {
	if a.Inserted != b.Inserted {
		if !a.Inserted {
			return -1
		}
		return 1
	}
	return comparePairs(a.Pair, b.Pair)
}

func comparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return cmp.Compare(a.Target, b.Target)
}
