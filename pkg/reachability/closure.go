package reachability

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// extend adds the pairs created by the new component edge ru -> rv when it does not close
// a cycle: every ancestor of ru (and ru) now reaches rv and every descendant of rv.
func (e *Engine) extend(ru, rv int64) {
	targets := make([]int64, 0, len(e.desc[rv])+1)
	targets = append(targets, rv)
	for d := range e.desc[rv] {
		targets = append(targets, d)
	}

	for _, s := range e.ancestorsAndSelf(ru) {
		if e.reaches(s, rv) {
			// rows are closed under successors, s already reaches every target.
			continue
		}
		for _, t := range targets {
			e.link(s, t)
		}
	}
}

func (e *Engine) link(s, t int64) {
	e.desc[s][t] = struct{}{}
	e.anc[t][s] = struct{}{}
}

// mergeCycle collapses every component lying on a cycle closed by the component edge
// ru -> rv, that is every component reachable from rv that also reaches ru.
func (e *Engine) mergeCycle(ru, rv int64) {
	onCycle := rootSet{ru: {}, rv: {}}
	fromRV, toRU := e.desc[rv], e.anc[ru]
	if len(toRU) < len(fromRV) {
		fromRV, toRU = toRU, fromRV
	}
	for c := range fromRV {
		if _, ok := toRU[c]; ok {
			onCycle[c] = struct{}{}
		}
	}

	ancestors, descendants := rootSet{}, rootSet{}
	succ, pred := map[int64]int{}, map[int64]int{}
	for m := range onCycle {
		for a := range e.anc[m] {
			delete(e.desc[a], m)
			if _, ok := onCycle[a]; !ok {
				ancestors[a] = struct{}{}
			}
		}
		for d := range e.desc[m] {
			delete(e.anc[d], m)
			if _, ok := onCycle[d]; !ok {
				descendants[d] = struct{}{}
			}
		}
		for t, n := range e.cSucc[m] {
			delete(e.cPred[t], m)
			if _, ok := onCycle[t]; !ok {
				succ[t] += n
			}
		}
		for s, n := range e.cPred[m] {
			delete(e.cSucc[s], m)
			if _, ok := onCycle[s]; !ok {
				pred[s] += n
			}
		}
		delete(e.desc, m)
		delete(e.anc, m)
		delete(e.cSucc, m)
		delete(e.cPred, m)
	}

	members := make([]int64, 0, len(onCycle))
	for m := range onCycle {
		members = append(members, m)
	}
	r := e.components.UnionAll(members...)
	componentMergeCounter.Add(float64(len(members) - 1))

	e.cSucc[r] = succ
	e.cPred[r] = pred
	for t, n := range succ {
		e.cPred[t][r] = n
	}
	for s, n := range pred {
		e.cSucc[s][r] = n
	}

	e.desc[r] = rootSet{}
	e.anc[r] = rootSet{}
	for d := range descendants {
		e.link(r, d)
	}
	for a := range ancestors {
		e.link(a, r)
		for d := range descendants {
			e.link(a, d)
		}
	}
}

// reverify re-runs strongly connected component detection over the induced subgraph of
// the component r after one of its internal edges was deleted. If the component falls
// apart, the pieces replace it and the closure rows of the pieces and of the former
// ancestors of r are recomputed. Descendants of r are unaffected.
func (e *Engine) reverify(r int64) {
	members := e.components.Members(r)
	if len(members) == 1 {
		return
	}

	induced := simple.NewDirectedGraph()
	for m := range members {
		induced.AddNode(simple.Node(m))
	}
	for m := range members {
		for _, v := range e.succ[m].Values() {
			to := v.(int64)
			if _, ok := members[to]; !ok || to == m {
				continue
			}
			induced.SetEdge(induced.NewEdge(simple.Node(m), simple.Node(to)))
		}
	}
	pieces := topo.TarjanSCC(induced)
	if len(pieces) == 1 {
		return
	}
	componentSplitCounter.Inc()

	// keep a copy, the member map is dropped with the set.
	former := make([]int64, 0, len(members))
	for m := range members {
		former = append(former, m)
	}
	ancestors := e.anc[r]

	for d := range e.desc[r] {
		delete(e.anc[d], r)
	}
	for a := range ancestors {
		delete(e.desc[a], r)
	}
	for t := range e.cSucc[r] {
		delete(e.cPred[t], r)
	}
	for s := range e.cPred[r] {
		delete(e.cSucc[s], r)
	}
	delete(e.desc, r)
	delete(e.anc, r)
	delete(e.cSucc, r)
	delete(e.cPred, r)
	e.components.DeleteSet(r)

	sources := make([]int64, 0, len(pieces)+len(ancestors))
	for _, piece := range pieces {
		ids := make([]int64, len(piece))
		for i, n := range piece {
			ids[i] = n.ID()
			e.components.MakeSet(ids[i])
		}
		root := e.components.UnionAll(ids...)
		e.cSucc[root] = map[int64]int{}
		e.cPred[root] = map[int64]int{}
		e.desc[root] = rootSet{}
		e.anc[root] = rootSet{}
		sources = append(sources, root)
	}
	for a := range ancestors {
		sources = append(sources, a)
	}

	inside := make(map[int64]struct{}, len(former))
	for _, m := range former {
		inside[m] = struct{}{}
	}
	for _, m := range former {
		rm := e.root(m)
		for _, v := range e.succ[m].Values() {
			if rt := e.root(v.(int64)); rt != rm {
				e.addComponentEdge(rm, rt, 1)
			}
		}
		for _, v := range e.pred[m].Values() {
			from := v.(int64)
			if _, ok := inside[from]; ok {
				// counted from the other side above.
				continue
			}
			e.addComponentEdge(e.root(from), rm, 1)
		}
	}

	e.recompute(sources)
	recomputedRowsHistogram.Observe(float64(len(sources)))
}

// recompute rebuilds the closure rows of sources from scratch. Every ancestor of a source
// must itself be a source; rows of components outside of sources are read but never
// written.
func (e *Engine) recompute(sources []int64) {
	set := make(rootSet, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	for _, s := range sources {
		for d := range e.desc[s] {
			delete(e.anc[d], s)
		}
		e.desc[s] = rootSet{}
	}

	for _, s := range e.postOrder(sources, set) {
		row := e.desc[s]
		for t := range e.cSucc[s] {
			row[t] = struct{}{}
			for d := range e.desc[t] {
				row[d] = struct{}{}
			}
		}
		for d := range row {
			e.anc[d][s] = struct{}{}
		}
	}
}

// postOrder lists sources so that every source comes after all of its successors in the
// condensation, i.e. in reverse topological order.
func (e *Engine) postOrder(sources []int64, set rootSet) []int64 {
	order := make([]int64, 0, len(sources))
	visited := make(rootSet, len(sources))

	type frame struct {
		node int64
		next []int64
	}
	for _, s := range sources {
		if _, ok := visited[s]; ok {
			continue
		}
		visited[s] = struct{}{}
		stack := []frame{{node: s, next: e.successorsIn(s, set)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				order = append(order, top.node)
				stack = stack[:len(stack)-1]
				continue
			}
			n := top.next[0]
			top.next = top.next[1:]
			if _, ok := visited[n]; ok {
				continue
			}
			visited[n] = struct{}{}
			stack = append(stack, frame{node: n, next: e.successorsIn(n, set)})
		}
	}
	return order
}

func (e *Engine) successorsIn(r int64, set rootSet) []int64 {
	var out []int64
	for t := range e.cSucc[r] {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
