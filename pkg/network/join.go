package network

import (
	"context"
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/indexer"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// JoinNode computes the natural join of two parents on the signatures produced by their
// masks. The result tuple is the left tuple followed by the right positions not in the right
// mask.
//
// The node owns one memory per side. A delta first updates the memory of its own side and
// then probes the memory of the other one, so a parent wired as both sides (a self join)
// yields exactly the change of the join: ΔL⋈R followed by L'⋈ΔR.
type JoinNode struct {
	Binding
	left, right             NodeID
	leftMemory, rightMemory *indexer.Indexer
	rightRest               tuple.Mask
}

var (
	_ Receiver = (*JoinNode)(nil)
	_ Supplier = (*JoinNode)(nil)
)

// NewJoinNode joins left and right on leftMask and rightMask, which must select the same
// number of positions.
func NewJoinNode(left NodeID, leftMask tuple.Mask, right NodeID, rightMask tuple.Mask) (*JoinNode, error) {
	if err := checkMaskArity(leftMask, rightMask); err != nil {
		return nil, err
	}
	return &JoinNode{
		left:        left,
		right:       right,
		leftMemory:  indexer.New(leftMask),
		rightMemory: indexer.New(rightMask),
		rightRest:   rightMask.Complement(),
	}, nil
}

func (n *JoinNode) Update(_ context.Context, msg UpdateMessage) error {
	matched := false
	if msg.Source == n.left {
		matched = true
		if err := n.leftMemory.Update(msg.Direction, msg.Tuple); err != nil {
			return err
		}
		if err := n.probe(n.rightMemory, n.leftMemory.Mask(), msg, true); err != nil {
			return err
		}
	}
	if msg.Source == n.right {
		matched = true
		if err := n.rightMemory.Update(msg.Direction, msg.Tuple); err != nil {
			return err
		}
		if err := n.probe(n.leftMemory, n.rightMemory.Mask(), msg, false); err != nil {
			return err
		}
	}
	if !matched {
		return &UnexpectedParentError{Node: n.ID(), Parent: msg.Source}
	}
	return nil
}

// probe joins the delta with the matching bucket of other.
func (n *JoinNode) probe(other *indexer.Indexer, own tuple.Mask, msg UpdateMessage, fromLeft bool) error {
	signature, err := own.Project(msg.Tuple)
	if err != nil {
		return err
	}
	partners, err := other.Get(signature)
	if err != nil {
		return err
	}
	for _, p := range partners {
		l, r := msg.Tuple, p
		if !fromLeft {
			l, r = p, msg.Tuple
		}
		out, err := n.combine(l, r)
		if err != nil {
			return err
		}
		for range other.Count(p) {
			n.Propagate(msg.Direction, out, msg.Timestamp)
		}
	}
	return nil
}

func (n *JoinNode) combine(l, r tuple.Tuple) (tuple.Tuple, error) {
	rest, err := n.rightRest.Project(r)
	if err != nil {
		return nil, err
	}
	return tuple.Concat(l, rest), nil
}

func (n *JoinNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	start := len(*into)
	for _, signature := range n.leftMemory.Signatures() {
		ok, err := n.rightMemory.Contains(signature)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		lefts, _ := n.leftMemory.Get(signature)
		rights, _ := n.rightMemory.Get(signature)
		for _, l := range lefts {
			for _, r := range rights {
				out, err := n.combine(l, r)
				if err != nil {
					return err
				}
				for range n.leftMemory.Count(l) * n.rightMemory.Count(r) {
					*into = append(*into, out)
				}
			}
		}
	}
	tuple.Sort((*into)[start:])
	return nil
}

func checkMaskArity(a, b tuple.Mask) error {
	if a.Arity() != b.Arity() {
		return tferrors.With(
			fmt.Errorf("masks %s and %s select a different number of positions", a, b),
			tferrors.ErrContractViolation)
	}
	return nil
}
