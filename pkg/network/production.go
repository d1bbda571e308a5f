package network

import (
	"cmp"
	"context"
	"slices"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// ResultObserver is notified of every change of a production node, in delivery order.
type ResultObserver interface {
	ResultChanged(dir tuple.Direction, t tuple.Tuple, ts Timestamp)
}

// ResultObserverFunc adapts a function to the ResultObserver interface.
type ResultObserverFunc func(dir tuple.Direction, t tuple.Tuple, ts Timestamp)

func (f ResultObserverFunc) ResultChanged(dir tuple.Direction, t tuple.Tuple, ts Timestamp) {
	f(dir, t, ts)
}

type change struct {
	dir tuple.Direction
	t   tuple.Tuple
	ts  Timestamp
}

// ProductionNode is the terminal node of a pattern: it holds the result multiset, notifies
// observers, and keeps the history of its changes so that it can answer timestamped pulls.
type ProductionNode struct {
	Binding
	results   map[tuple.Tuple]int
	observers []ResultObserver
	history   []change
}

var (
	_ Receiver            = (*ProductionNode)(nil)
	_ Supplier            = (*ProductionNode)(nil)
	_ TimestampedSupplier = (*ProductionNode)(nil)
)

func NewProductionNode(observers ...ResultObserver) *ProductionNode {
	return &ProductionNode{results: map[tuple.Tuple]int{}, observers: observers}
}

func (n *ProductionNode) AddObserver(o ResultObserver) {
	n.observers = append(n.observers, o)
}

func (n *ProductionNode) Update(_ context.Context, msg UpdateMessage) error {
	count := n.results[msg.Tuple] + msg.Direction.Sign()
	if count < 0 {
		return &FactNotFoundError{Node: n.ID(), Fact: msg.Tuple}
	}
	if count == 0 {
		delete(n.results, msg.Tuple)
	} else {
		n.results[msg.Tuple] = count
	}
	n.history = append(n.history, change{dir: msg.Direction, t: msg.Tuple, ts: msg.Timestamp})
	for _, o := range n.observers {
		o.ResultChanged(msg.Direction, msg.Tuple, msg.Timestamp)
	}
	return nil
}

// Count returns the multiplicity of t in the result.
func (n *ProductionNode) Count(t tuple.Tuple) int {
	return n.results[t]
}

// Len returns the number of distinct result tuples.
func (n *ProductionNode) Len() int {
	return len(n.results)
}

func (n *ProductionNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	appendCounted(into, n.results)
	return nil
}

// PullAt appends the result as it was once every delta stamped ts or earlier had been
// delivered. The history is replayed by timestamp rather than by delivery position, since
// the deltas of two undrained transactions may interleave.
func (n *ProductionNode) PullAt(_ context.Context, into *[]tuple.Tuple, ts Timestamp) error {
	counts := map[tuple.Tuple]int{}
	history := slices.Clone(n.history)
	slices.SortStableFunc(history, func(a, b change) int {
		return cmp.Compare(a.ts, b.ts)
	})
	for _, c := range history {
		if c.ts > ts {
			break
		}
		counts[c.t] += c.dir.Sign()
		if counts[c.t] == 0 {
			delete(counts, c.t)
		}
	}
	// exact when every transaction was drained before the next one started. Otherwise a
	// distinct node may stamp a change with a later transaction, leaving negative counts.
	for t, count := range counts {
		if count < 0 {
			delete(counts, t)
		}
	}
	appendCounted(into, counts)
	return nil
}
