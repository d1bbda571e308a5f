package network

import (
	"context"

	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// TrimmerNode projects every delta through a mask. It keeps no state; the result is a bag,
// put a DistinctNode behind it for set semantics.
type TrimmerNode struct {
	Binding
	mask tuple.Mask
}

var (
	_ Receiver = (*TrimmerNode)(nil)
	_ Supplier = (*TrimmerNode)(nil)
)

func NewTrimmerNode(mask tuple.Mask) *TrimmerNode {
	return &TrimmerNode{mask: mask}
}

func (n *TrimmerNode) Update(_ context.Context, msg UpdateMessage) error {
	projected, err := n.mask.Project(msg.Tuple)
	if err != nil {
		return err
	}
	n.Propagate(msg.Direction, projected, msg.Timestamp)
	return nil
}

func (n *TrimmerNode) PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	var parents []tuple.Tuple
	if err := n.PullParents(ctx, &parents, flush); err != nil {
		return err
	}
	start := len(*into)
	for _, t := range parents {
		projected, err := n.mask.Project(t)
		if err != nil {
			return err
		}
		*into = append(*into, projected)
	}
	tuple.Sort((*into)[start:])
	return nil
}
