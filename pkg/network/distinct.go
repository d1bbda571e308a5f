package network

import (
	"context"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// DistinctNode turns the bag of deltas from all of its parents into a set: a tuple is
// inserted when its count becomes positive and retracted when it drops back to zero. With
// several parents it computes their union.
//
// Inside a cyclic communication group a tuple can keep a positive count through derivations
// that only lead back to itself. There the node deletes and rederives: any retraction of an
// emitted tuple retracts it at once, and once the group has settled the tuples whose count
// is still positive are inserted again. The count then only covers derivations from tuples
// that survived the deletion.
type DistinctNode struct {
	Binding
	counts  map[tuple.Tuple]int
	emitted map[tuple.Tuple]struct{}
	// tuples retracted while their count was positive, waiting to be rederived.
	suspects map[tuple.Tuple]Timestamp
}

var (
	_ Receiver  = (*DistinctNode)(nil)
	_ Supplier  = (*DistinctNode)(nil)
	_ rederiver = (*DistinctNode)(nil)
)

func NewDistinctNode() *DistinctNode {
	return &DistinctNode{
		counts:   map[tuple.Tuple]int{},
		emitted:  map[tuple.Tuple]struct{}{},
		suspects: map[tuple.Tuple]Timestamp{},
	}
}

func (n *DistinctNode) Update(_ context.Context, msg UpdateMessage) error {
	after := n.counts[msg.Tuple] + msg.Direction.Sign()
	if after < 0 {
		return &FactNotFoundError{Node: n.ID(), Fact: msg.Tuple}
	}
	if after == 0 {
		delete(n.counts, msg.Tuple)
	} else {
		n.counts[msg.Tuple] = after
	}

	_, emitted := n.emitted[msg.Tuple]
	if msg.Direction == tuple.Insert {
		if _, suspect := n.suspects[msg.Tuple]; !emitted && !suspect {
			n.emit(tuple.Insert, msg.Tuple, msg.Timestamp)
		}
		return nil
	}

	switch {
	case after == 0:
		delete(n.suspects, msg.Tuple)
		if emitted {
			n.emit(tuple.Retract, msg.Tuple, msg.Timestamp)
		}
	case emitted && n.cyclic():
		n.suspects[msg.Tuple] = msg.Timestamp
		n.emit(tuple.Retract, msg.Tuple, msg.Timestamp)
	}
	return nil
}

func (n *DistinctNode) emit(dir tuple.Direction, t tuple.Tuple, ts Timestamp) {
	if dir == tuple.Insert {
		n.emitted[t] = struct{}{}
	} else {
		delete(n.emitted, t)
	}
	n.Propagate(dir, t, ts)
}

// rederive inserts again every suspect still derivable and reports how many it inserted.
func (n *DistinctNode) rederive() int {
	inserted := 0
	for t, ts := range n.suspects {
		if n.counts[t] > 0 {
			n.emit(tuple.Insert, t, ts)
			inserted++
		}
	}
	clear(n.suspects)
	return inserted
}

// Contains reports whether t is currently in the set.
func (n *DistinctNode) Contains(t tuple.Tuple) bool {
	_, ok := n.emitted[t]
	return ok
}

func (n *DistinctNode) Len() int {
	return len(n.emitted)
}

func (n *DistinctNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	start := len(*into)
	for t := range n.emitted {
		*into = append(*into, t)
	}
	tuple.Sort((*into)[start:])
	return nil
}
