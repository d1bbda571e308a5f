package network

import (
	"context"
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// InputNode holds the base facts of one relation as a multiset and propagates every change.
type InputNode struct {
	Binding
	arity int
	facts map[tuple.Tuple]int
}

var (
	_ Injector = (*InputNode)(nil)
	_ Supplier = (*InputNode)(nil)
)

// NewInputNode returns an input for facts of the given arity.
func NewInputNode(arity int) *InputNode {
	return &InputNode{arity: arity, facts: map[tuple.Tuple]int{}}
}

func (n *InputNode) Arity() int {
	return n.arity
}

// Inject applies one base fact. Facts of the wrong arity, with negative identifiers, or
// retractions of absent facts are contract violations.
func (n *InputNode) Inject(_ context.Context, dir tuple.Direction, t tuple.Tuple, ts Timestamp) error {
	if err := checkDirection(dir); err != nil {
		return err
	}
	if t.Size() != n.arity {
		return &tuple.ArityMismatchError{Tuple: t, Expected: n.arity}
	}
	if err := tuple.Validate(t); err != nil {
		return err
	}
	if dir == tuple.Retract {
		if n.facts[t] == 0 {
			return &FactNotFoundError{Node: n.ID(), Fact: t}
		}
		n.facts[t]--
		if n.facts[t] == 0 {
			delete(n.facts, t)
		}
	} else {
		n.facts[t]++
	}
	n.Propagate(dir, t, ts)
	return nil
}

// Count returns the multiplicity of fact t.
func (n *InputNode) Count(t tuple.Tuple) int {
	return n.facts[t]
}

func (n *InputNode) PullInto(_ context.Context, into *[]tuple.Tuple, _ bool) error {
	appendCounted(into, n.facts)
	return nil
}

func checkDirection(dir tuple.Direction) error {
	if !dir.Valid() {
		return tferrors.With(fmt.Errorf("invalid direction %d", dir), tferrors.ErrContractViolation)
	}
	return nil
}

// appendCounted appends every key of counts as often as its count, sorted.
func appendCounted(into *[]tuple.Tuple, counts map[tuple.Tuple]int) {
	start := len(*into)
	for t, n := range counts {
		for range n {
			*into = append(*into, t)
		}
	}
	tuple.Sort((*into)[start:])
}
