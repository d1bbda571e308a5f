package reachability

import (
	"slices"

	"golang.org/x/exp/maps"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Relation is a set of reachable pairs.
type Relation map[Pair]struct{}

// Add inserts the pair (s, t).
func (r Relation) Add(s, t int64) {
	r[Pair{Source: s, Target: t}] = struct{}{}
}

// Contains reports whether (s, t) is in the relation.
func (r Relation) Contains(s, t int64) bool {
	_, ok := r[Pair{Source: s, Target: t}]
	return ok
}

// Clone returns a copy of r.
func (r Relation) Clone() Relation {
	return maps.Clone(r)
}

// Sorted returns the pairs of r ordered by source, then target.
func (r Relation) Sorted() []Pair {
	out := make([]Pair, 0, len(r))
	for p := range r {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePairs)
	return out
}

// Relation returns a snapshot of the maintained relation.
func (e *Engine) Relation() Relation {
	out := Relation{}
	e.components.Roots(func(r int64) bool {
		targets := e.targetNodes(r)
		for s := range e.components.Members(r) {
			for t := range targets {
				out.Add(s, t)
			}
		}
		return true
	})
	return out
}

// CheckTcRelation compares the maintained relation with expected, typically computed from
// scratch with Baseline, and returns a *RelationMismatchError listing the differences.
func (e *Engine) CheckTcRelation(expected Relation) error {
	actual := e.Relation()
	mismatch := &RelationMismatchError{}
	for p := range expected {
		if _, ok := actual[p]; !ok {
			mismatch.Missing = append(mismatch.Missing, p)
		}
	}
	for p := range actual {
		if _, ok := expected[p]; !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, p)
		}
	}
	if len(mismatch.Missing) == 0 && len(mismatch.Unexpected) == 0 {
		return nil
	}
	slices.SortFunc(mismatch.Missing, comparePairs)
	slices.SortFunc(mismatch.Unexpected, comparePairs)
	return mismatch
}

// Edges returns the distinct edges of the graph ordered by source, then target.
func (e *Engine) Edges() []Pair {
	out := make([]Pair, 0, len(e.edges))
	for k := range e.edges {
		out = append(out, Pair{Source: k.from, Target: k.to})
	}
	slices.SortFunc(out, comparePairs)
	return out
}

// Nodes returns the nodes of the graph in ascending order.
func (e *Engine) Nodes() []int64 {
	out := make([]int64, 0, len(e.succ))
	for n := range e.succ {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Baseline computes the transitive closure of the graph given by nodes and edges from
// scratch with a breadth first traversal from every node. It is the ground truth used to
// verify the incremental engine.
func Baseline(nodes []int64, edges []Pair) Relation {
	g := simple.NewDirectedGraph()
	for _, n := range nodes {
		if g.Node(n) == nil {
			g.AddNode(simple.Node(n))
		}
	}
	loops := map[int64]struct{}{}
	for _, p := range edges {
		for _, n := range []int64{p.Source, p.Target} {
			if g.Node(n) == nil {
				g.AddNode(simple.Node(n))
			}
		}
		if p.Source == p.Target {
			// simple graphs reject self edges.
			loops[p.Source] = struct{}{}
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(p.Source), simple.Node(p.Target)))
	}

	out := Relation{}
	it := g.Nodes()
	for it.Next() {
		s := it.Node().ID()
		visited := map[int64]struct{}{}
		bfs := traverse.BreadthFirst{
			Visit: func(n graph.Node) {
				visited[n.ID()] = struct{}{}
			},
		}
		bfs.Walk(g, simple.Node(s), nil)

		for t := range visited {
			if t != s {
				out.Add(s, t)
			}
		}
		_, selfLoop := loops[s]
		if !selfLoop {
			preds := g.To(s)
			for preds.Next() {
				if _, ok := visited[preds.Node().ID()]; ok {
					selfLoop = true
					break
				}
			}
		}
		if selfLoop {
			out.Add(s, s)
		}
	}
	return out
}
