package network

import (
	"context"

	"github.com/tupleflow/tupleflow/internal/condition"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// CheckNode passes on the deltas whose tuple satisfies a CEL predicate. The predicate sees
// the tuple as the list `t` and its arity as `arity`.
type CheckNode struct {
	Binding
	predicate *condition.Predicate
}

var (
	_ Receiver = (*CheckNode)(nil)
	_ Supplier = (*CheckNode)(nil)
)

// NewCheckNode compiles expression. A broken expression is a contract violation.
func NewCheckNode(name, expression string) (*CheckNode, error) {
	p, err := condition.Compile(name, expression)
	if err != nil {
		return nil, err
	}
	return &CheckNode{predicate: p}, nil
}

func (n *CheckNode) Expression() string {
	return n.predicate.Expression()
}

func (n *CheckNode) Update(_ context.Context, msg UpdateMessage) error {
	ok, err := n.predicate.Evaluate(msg.Tuple)
	if err != nil {
		return err
	}
	if ok {
		n.Propagate(msg.Direction, msg.Tuple, msg.Timestamp)
	}
	return nil
}

func (n *CheckNode) PullInto(ctx context.Context, into *[]tuple.Tuple, flush bool) error {
	var parents []tuple.Tuple
	if err := n.PullParents(ctx, &parents, flush); err != nil {
		return err
	}
	for _, t := range parents {
		ok, err := n.predicate.Evaluate(t)
		if err != nil {
			return err
		}
		if ok {
			*into = append(*into, t)
		}
	}
	return nil
}
