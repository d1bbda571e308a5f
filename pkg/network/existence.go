package network

import (
	"context"

	"github.com/tupleflow/tupleflow/pkg/indexer"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// ExistenceNode filters the tuples of its primary parent by the existence (semi join) or
// absence (anti join) of a secondary tuple with the same signature. Secondary deltas only
// matter when a secondary bucket becomes non-empty or empty; the node reacts to those
// transitions by inserting or retracting the affected primary tuples.
type ExistenceNode struct {
	Binding
	primary, secondary NodeID
	negative           bool

	primaryMemory   *indexer.Indexer
	secondaryMemory *indexer.Indexer

	// timestamp of the secondary delta being applied, read by the bucket listener.
	current Timestamp
}

var (
	_ Receiver = (*ExistenceNode)(nil)
	_ Supplier = (*ExistenceNode)(nil)
)

// NewExistenceNode returns a semi join of primary with secondary, or an anti join if
// negative. Both masks must select the same number of positions.
func NewExistenceNode(primary NodeID, primaryMask tuple.Mask, secondary NodeID, secondaryMask tuple.Mask, negative bool) (*ExistenceNode, error) {
	if err := checkMaskArity(primaryMask, secondaryMask); err != nil {
		return nil, err
	}
	n := &ExistenceNode{
		primary:       primary,
		secondary:     secondary,
		negative:      negative,
		primaryMemory: indexer.New(primaryMask),
	}
	n.secondaryMemory = indexer.New(secondaryMask, indexer.WithListener(indexer.ListenerFunc(n.secondaryChanged)))
	return n, nil
}

func (n *ExistenceNode) Update(_ context.Context, msg UpdateMessage) error {
	switch msg.Source {
	case n.primary:
		if err := n.primaryMemory.Update(msg.Direction, msg.Tuple); err != nil {
			return err
		}
		ok, err := n.admits(msg.Tuple)
		if err != nil {
			return err
		}
		if ok {
			n.Propagate(msg.Direction, msg.Tuple, msg.Timestamp)
		}
		return nil
	case n.secondary:
		n.current = msg.Timestamp
		return n.secondaryMemory.Update(msg.Direction, msg.Tuple)
	default:
		return &UnexpectedParentError{Node: n.ID(), Parent: msg.Source}
	}
}

func (n *ExistenceNode) admits(t tuple.Tuple) (bool, error) {
	signature, err := n.primaryMemory.Mask().Project(t)
	if err != nil {
		return false, err
	}
	exists, err := n.secondaryMemory.Contains(signature)
	if err != nil {
		return false, err
	}
	return exists != n.negative, nil
}

func (n *ExistenceNode) secondaryChanged(dir tuple.Direction, signature, _ tuple.Tuple) {
	if n.negative {
		dir = dir.Opposite()
	}
	// both masks select the same number of positions, the lookup cannot fail.
	matches, _ := n.primaryMemory.Get(signature)
	for _, t := range matches {
		for range n.primaryMemory.Count(t) {
			n.Propagate(dir, t, n.current)
		}
	}
}

func (n *ExistenceNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	start := len(*into)
	for t, count := range n.primaryMemory.Tuples() {
		ok, err := n.admits(t)
		if err != nil {
			return err
		}
		if ok {
			for range count {
				*into = append(*into, t)
			}
		}
	}
	tuple.Sort((*into)[start:])
	return nil
}
