// Package reachability maintains the transitive closure and the strongly connected
// components of a directed graph under online edge insertion and deletion.
//
// Nodes are grouped into components with a union-find structure. Reachability is kept at
// the level of the condensation: every component root stores the roots it strictly reaches
// and the roots strictly reaching it. Insertions extend those rows for the affected
// ancestors only and merge the components of a newly closed cycle. Deletions re-verify the
// affected component with a local Tarjan run and recompute the rows of its ancestors in
// reverse topological order, so the cost is bounded by the affected region rather than the
// whole graph.
package reachability

import (
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tupleflow/tupleflow/internal/unionfind"
)

var (
	componentMergeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "scc_merge_count",
		Help:      "The total number of strongly connected components merged into another one by an edge insertion.",
	})

	componentSplitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tupleflow",
		Name:      "scc_split_count",
		Help:      "The total number of re-verifications that split a strongly connected component.",
	})

	recomputedRowsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tupleflow",
		Name:      "tc_recomputed_rows",
		Help:      "The number of component closure rows recomputed by one edge deletion.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	})
)

// Pair is an ordered pair of node identifiers.
type Pair struct {
	Source, Target int64
}

type edgeKey struct {
	from, to int64
}

type rootSet = map[int64]struct{}

// Engine is an incrementally maintained transitive closure over a directed graph. It is
// not safe for concurrent use; inside a container every mutation happens on the
// container's scheduler goroutine.
type Engine struct {
	// node level graph; adjacency sets keep insertion order so that witness paths are
	// deterministic for a fixed edge insertion history.
	succ  map[int64]*linkedhashset.Set
	pred  map[int64]*linkedhashset.Set
	edges map[edgeKey]int
	loops map[int64]struct{}

	components *unionfind.UnionFind[int64]

	// condensation level graph; values count the node edges behind a component edge.
	cSucc map[int64]map[int64]int
	cPred map[int64]map[int64]int

	// desc[r] holds the roots r strictly reaches, anc[r] the roots strictly reaching r.
	desc map[int64]rootSet
	anc  map[int64]rootSet

	observers []Observer
}

// EngineOpt configures an Engine.
type EngineOpt func(*Engine)

// WithObserver registers an observer notified of every change of the relation.
func WithObserver(o Observer) EngineOpt {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// NewEngine returns an engine over the empty graph.
func NewEngine(opts ...EngineOpt) *Engine {
	e := &Engine{
		succ:       map[int64]*linkedhashset.Set{},
		pred:       map[int64]*linkedhashset.Set{},
		edges:      map[edgeKey]int{},
		loops:      map[int64]struct{}{},
		components: unionfind.New[int64](),
		cSucc:      map[int64]map[int64]int{},
		cPred:      map[int64]map[int64]int{},
		desc:       map[int64]rootSet{},
		anc:        map[int64]rootSet{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddObserver registers an observer notified of every change of the relation.
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// HasNode reports whether v is in the graph.
func (e *Engine) HasNode(v int64) bool {
	_, ok := e.succ[v]
	return ok
}

// NodeCount returns the number of nodes in the graph.
func (e *Engine) NodeCount() int {
	return len(e.succ)
}

// EdgeCount returns the number of distinct edges in the graph.
func (e *Engine) EdgeCount() int {
	return len(e.edges)
}

// Degree returns the number of distinct edges incident to v.
func (e *Engine) Degree(v int64) int {
	s, ok := e.succ[v]
	if !ok {
		return 0
	}
	d := s.Size() + e.pred[v].Size()
	if _, loop := e.loops[v]; loop {
		d--
	}
	return d
}

// InsertNode adds v as an isolated node. Inserting a known node is a no-op.
func (e *Engine) InsertNode(v int64) {
	if e.HasNode(v) {
		return
	}
	e.succ[v] = linkedhashset.New()
	e.pred[v] = linkedhashset.New()
	e.components.MakeSet(v)
	e.cSucc[v] = map[int64]int{}
	e.cPred[v] = map[int64]int{}
	e.desc[v] = rootSet{}
	e.anc[v] = rootSet{}
}

// DeleteNode removes the isolated node v.
func (e *Engine) DeleteNode(v int64) error {
	if !e.HasNode(v) {
		return &NodeNotFoundError{Node: v}
	}
	if d := e.Degree(v); d > 0 {
		return &NodeInUseError{Node: v, Edges: d}
	}
	delete(e.succ, v)
	delete(e.pred, v)
	e.components.DeleteSet(v)
	delete(e.cSucc, v)
	delete(e.cPred, v)
	delete(e.desc, v)
	delete(e.anc, v)
	return nil
}

// EdgeMultiplicity returns how many times the edge u -> v has been inserted and not yet
// deleted.
func (e *Engine) EdgeMultiplicity(u, v int64) int {
	return e.edges[edgeKey{u, v}]
}

// InsertEdge inserts the edge u -> v. Edges are counted: only the first insertion of an
// edge changes the graph.
func (e *Engine) InsertEdge(u, v int64) error {
	if err := e.requireNodes(u, v); err != nil {
		return err
	}
	key := edgeKey{u, v}
	e.edges[key]++
	if e.edges[key] > 1 {
		return nil
	}

	ru := e.root(u)
	snap := e.snapshot(ru)

	e.succ[u].Add(v)
	e.pred[v].Add(u)
	if u == v {
		e.loops[u] = struct{}{}
	}

	rv := e.root(v)
	if ru != rv && e.addComponentEdge(ru, rv, 1) {
		if e.reaches(rv, ru) {
			e.mergeCycle(ru, rv)
		} else {
			e.extend(ru, rv)
		}
	}

	e.publish(snap)
	return nil
}

// DeleteEdge deletes one occurrence of the edge u -> v. The graph only changes when the
// last occurrence is deleted.
func (e *Engine) DeleteEdge(u, v int64) error {
	if err := e.requireNodes(u, v); err != nil {
		return err
	}
	key := edgeKey{u, v}
	n, ok := e.edges[key]
	if !ok {
		return &EdgeNotFoundError{Source: u, Target: v}
	}
	if n > 1 {
		e.edges[key] = n - 1
		return nil
	}
	delete(e.edges, key)

	ru := e.root(u)
	snap := e.snapshot(ru)

	e.succ[u].Remove(v)
	e.pred[v].Remove(u)
	if u == v {
		delete(e.loops, u)
	}

	rv := e.root(v)
	if ru == rv {
		e.reverify(ru)
	} else if e.removeComponentEdge(ru, rv) {
		sources := e.ancestorsAndSelf(ru)
		e.recompute(sources)
		recomputedRowsHistogram.Observe(float64(len(sources)))
	}

	e.publish(snap)
	return nil
}

func (e *Engine) requireNodes(nodes ...int64) error {
	for _, n := range nodes {
		if !e.HasNode(n) {
			return &NodeNotFoundError{Node: n}
		}
	}
	return nil
}

func (e *Engine) root(v int64) int64 {
	r, _ := e.components.Find(v)
	return r
}

func (e *Engine) reaches(from, to int64) bool {
	_, ok := e.desc[from][to]
	return ok
}

// cyclic reports whether the component represented by r contains a cycle, i.e. whether its
// members reach themselves.
func (e *Engine) cyclic(r int64) bool {
	if len(e.components.Members(r)) > 1 {
		return true
	}
	_, ok := e.loops[r]
	return ok
}

// addComponentEdge records n node edges from component a to component b and reports
// whether the component edge is new.
func (e *Engine) addComponentEdge(a, b int64, n int) bool {
	before := e.cSucc[a][b]
	e.cSucc[a][b] = before + n
	e.cPred[b][a] = before + n
	return before == 0
}

// removeComponentEdge forgets one node edge from component a to component b and reports
// whether the component edge disappeared.
func (e *Engine) removeComponentEdge(a, b int64) bool {
	n := e.cSucc[a][b] - 1
	if n > 0 {
		e.cSucc[a][b] = n
		e.cPred[b][a] = n
		return false
	}
	delete(e.cSucc[a], b)
	delete(e.cPred[b], a)
	return true
}

func (e *Engine) ancestorsAndSelf(r int64) []int64 {
	out := make([]int64, 0, len(e.anc[r])+1)
	out = append(out, r)
	for a := range e.anc[r] {
		out = append(out, a)
	}
	return out
}
