package reachability

import (
	"cmp"
	"slices"
)

// IsReachable reports whether a directed path of at least one edge leads from a to b. In
// particular IsReachable(a, a) holds only while a lies on a cycle.
func (e *Engine) IsReachable(a, b int64) (bool, error) {
	if err := e.requireNodes(a, b); err != nil {
		return false, err
	}
	ra, rb := e.root(a), e.root(b)
	if ra == rb {
		return e.cyclic(ra), nil
	}
	return e.reaches(ra, rb), nil
}

// AllReachableTargets returns, in ascending order, every node reachable from s.
func (e *Engine) AllReachableTargets(s int64) ([]int64, error) {
	if err := e.requireNodes(s); err != nil {
		return nil, err
	}
	return sortedKeys(e.targetNodes(e.root(s))), nil
}

// AllReachableSources returns, in ascending order, every node reaching t.
func (e *Engine) AllReachableSources(t int64) ([]int64, error) {
	if err := e.requireNodes(t); err != nil {
		return nil, err
	}
	r := e.root(t)
	out := map[int64]struct{}{}
	if e.cyclic(r) {
		for m := range e.components.Members(r) {
			out[m] = struct{}{}
		}
	}
	for a := range e.anc[r] {
		for m := range e.components.Members(a) {
			out[m] = struct{}{}
		}
	}
	return sortedKeys(out), nil
}

// ReachabilityPath returns a witness path [a, ..., b] whose consecutive elements are
// edges, or false if b is not reachable from a. The path is a shortest one; ties are broken
// by edge insertion order, so the result is deterministic for a fixed history. For a == b
// the path is [a, a] while a lies on a cycle.
func (e *Engine) ReachabilityPath(a, b int64) ([]int64, bool, error) {
	reachable, err := e.IsReachable(a, b)
	if err != nil || !reachable {
		return nil, false, err
	}
	if a == b {
		return []int64{a, a}, true, nil
	}

	rb := e.root(b)
	parent := map[int64]int64{a: a}
	queue := []int64{a}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, v := range e.succ[n].Values() {
			next := v.(int64)
			if _, seen := parent[next]; seen {
				continue
			}
			if rn := e.root(next); rn != rb && !e.reaches(rn, rb) {
				continue
			}
			parent[next] = n
			if next == b {
				return e.unwind(parent, a, b), true, nil
			}
			queue = append(queue, next)
		}
	}
	// unreachable as long as the closure is consistent with the graph.
	return nil, false, nil
}

func (e *Engine) unwind(parent map[int64]int64, a, b int64) []int64 {
	path := []int64{b}
	for n := b; n != a; {
		n = parent[n]
		path = append(path, n)
	}
	slices.Reverse(path)
	return path
}

// Components returns the strongly connected components with more than one node or with a
// self-loop, each sorted, ordered by their smallest member.
func (e *Engine) Components() [][]int64 {
	var out [][]int64
	e.components.Roots(func(r int64) bool {
		if e.cyclic(r) {
			out = append(out, sortedKeys(e.components.Members(r)))
		}
		return true
	})
	slices.SortFunc(out, func(x, y []int64) int {
		return cmp.Compare(x[0], y[0])
	})
	return out
}

// SameComponent reports whether a and b belong to the same strongly connected component.
func (e *Engine) SameComponent(a, b int64) (bool, error) {
	if err := e.requireNodes(a, b); err != nil {
		return false, err
	}
	return e.components.IsSameUnion(a, b), nil
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
