package network

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tupleflow/tupleflow/pkg/indexer"
	"github.com/tupleflow/tupleflow/pkg/reachability"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// TransitiveClosureNode maintains the transitive closure of the binary edge relation fed
// by its parents and emits the changes of the closure, as pairs, to its children.
//
// Graph nodes are created when an edge first mentions them and dropped once their last edge
// is deleted. Lookups go through views: projection indexes over the closure for the masks
// (), (0), (1) and (0,1) of a pair, created on first use.
type TransitiveClosureNode struct {
	Binding
	engine   *reachability.Engine
	views    map[string]*indexer.Indexer
	revision Timestamp

	// timestamp of the edge being applied, read by the engine observer.
	current Timestamp
	// first error raised while applying engine deltas to the views.
	viewErr error
}

var (
	_ Receiver = (*TransitiveClosureNode)(nil)
	_ Supplier = (*TransitiveClosureNode)(nil)
)

func NewTransitiveClosureNode() *TransitiveClosureNode {
	n := &TransitiveClosureNode{views: map[string]*indexer.Indexer{}}
	n.engine = reachability.NewEngine(reachability.WithObserver(reachability.ObserverFunc(n.closureChanged)))
	return n
}

// Engine returns the underlying engine for diagnostics such as CheckTcRelation or
// ReachabilityPath. It must not be mutated directly.
func (n *TransitiveClosureNode) Engine() *reachability.Engine {
	return n.engine
}

// Revision returns the timestamp of the last applied edge delta.
func (n *TransitiveClosureNode) Revision() Timestamp {
	return n.revision
}

// InsertEdge inserts a base edge directly, outside of the network protocol.
func (n *TransitiveClosureNode) InsertEdge(ctx context.Context, e tuple.Tuple, ts Timestamp) error {
	return n.Update(ctx, UpdateMessage{Direction: tuple.Insert, Tuple: e, Timestamp: ts, Source: n.ID()})
}

// DeleteEdge deletes a base edge directly, outside of the network protocol.
func (n *TransitiveClosureNode) DeleteEdge(ctx context.Context, e tuple.Tuple, ts Timestamp) error {
	return n.Update(ctx, UpdateMessage{Direction: tuple.Retract, Tuple: e, Timestamp: ts, Source: n.ID()})
}

func (n *TransitiveClosureNode) Update(_ context.Context, msg UpdateMessage) error {
	if err := checkDirection(msg.Direction); err != nil {
		return err
	}
	u, v, err := edge(msg.Tuple)
	if err != nil {
		return err
	}
	n.current = msg.Timestamp
	if msg.Direction == tuple.Insert {
		n.engine.InsertNode(u)
		n.engine.InsertNode(v)
		err = n.engine.InsertEdge(u, v)
	} else {
		err = n.engine.DeleteEdge(u, v)
		if err == nil {
			n.dropIsolated(u, v)
		}
	}
	if err != nil {
		return err
	}
	if msg.Timestamp < n.revision {
		n.outOfOrder(msg)
	}
	n.revision = max(n.revision, msg.Timestamp)
	if n.viewErr != nil {
		err, n.viewErr = n.viewErr, nil
		return err
	}
	return nil
}

// outOfOrder records a delta stamped before the revision. The delta is still applied: the
// closure depends only on the set of edges, not on the order they arrive in.
func (n *TransitiveClosureNode) outOfOrder(msg UpdateMessage) {
	outOfOrderDeltasCounter.Inc()
	if c := n.Container(); c != nil {
		c.Logger().Debug("closure received a delta older than its revision",
			zap.Uint64("timestamp", uint64(msg.Timestamp)),
			zap.Uint64("revision", uint64(n.revision)),
			zap.Stringer("tuple", msg.Tuple))
	}
}

func (n *TransitiveClosureNode) dropIsolated(nodes ...int64) {
	for _, v := range nodes {
		if n.engine.HasNode(v) && n.engine.Degree(v) == 0 {
			_ = n.engine.DeleteNode(v)
		}
	}
}

func edge(t tuple.Tuple) (int64, int64, error) {
	if t.Size() != 2 {
		return 0, 0, &tuple.ArityMismatchError{Tuple: t, Expected: 2}
	}
	if err := tuple.Validate(t); err != nil {
		return 0, 0, err
	}
	u, _ := t.Get(0)
	v, _ := t.Get(1)
	return u, v, nil
}

func (n *TransitiveClosureNode) closureChanged(deltas []reachability.Delta) {
	for _, d := range deltas {
		dir := tuple.Retract
		if d.Inserted {
			dir = tuple.Insert
		}
		pair := tuple.Of2(d.Source, d.Target)
		for _, view := range n.views {
			if err := view.Update(dir, pair); err != nil && n.viewErr == nil {
				n.viewErr = fmt.Errorf("closure view %s: %w", view.Mask(), err)
			}
		}
		n.Propagate(dir, pair, n.current)
	}
}

// View returns the index over the closure pairs for mask, which must be one of (), (0),
// (1) or (0,1) over arity 2. Other masks are contract violations.
func (n *TransitiveClosureNode) View(mask tuple.Mask) (*indexer.Indexer, error) {
	if !closureMask(mask) {
		return nil, &UnsupportedMaskError{Node: n.ID(), Mask: mask.String()}
	}
	key := mask.String()
	if view, ok := n.views[key]; ok {
		return view, nil
	}
	view := indexer.New(mask)
	for _, p := range n.engine.Relation().Sorted() {
		if err := view.Update(tuple.Insert, tuple.Of2(p.Source, p.Target)); err != nil {
			return nil, err
		}
	}
	n.views[key] = view
	return view, nil
}

func closureMask(mask tuple.Mask) bool {
	if mask.SourceArity() != 2 {
		return false
	}
	switch p := mask.Positions(); len(p) {
	case 0:
		return true
	case 1:
		return p[0] == 0 || p[0] == 1
	case 2:
		return p[0] == 0 && p[1] == 1
	default:
		return false
	}
}

// IsReachable answers the fully bound lookup (s, t).
func (n *TransitiveClosureNode) IsReachable(s, t int64) bool {
	if !n.engine.HasNode(s) || !n.engine.HasNode(t) {
		return false
	}
	ok, _ := n.engine.IsReachable(s, t)
	return ok
}

func (n *TransitiveClosureNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	for _, p := range n.engine.Relation().Sorted() {
		*into = append(*into, tuple.Of2(p.Source, p.Target))
	}
	return nil
}
