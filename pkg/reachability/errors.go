package reachability

import (
	"fmt"
	"strings"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

// NodeNotFoundError is returned when an operation refers to a node that was never inserted.
// Nodes are never inserted implicitly.
type NodeNotFoundError struct {
	Node int64
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %d not found in graph", e.Node)
}

func (e *NodeNotFoundError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*NodeNotFoundError)
	return ok
}

// EdgeNotFoundError is returned when deleting an edge that is not in the graph.
type EdgeNotFoundError struct {
	Source, Target int64
}

func (e *EdgeNotFoundError) Error() string {
	return fmt.Sprintf("edge %d -> %d not found in graph", e.Source, e.Target)
}

func (e *EdgeNotFoundError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*EdgeNotFoundError)
	return ok
}

// NodeInUseError is returned when deleting a node that still has incident edges.
type NodeInUseError struct {
	Node  int64
	Edges int
}

func (e *NodeInUseError) Error() string {
	return fmt.Sprintf("node %d still has %d incident edges", e.Node, e.Edges)
}

func (e *NodeInUseError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*NodeInUseError)
	return ok
}

// RelationMismatchError is returned by CheckTcRelation when the maintained relation
// differs from the expected one.
type RelationMismatchError struct {
	// Missing holds pairs expected but not maintained.
	Missing []Pair
	// Unexpected holds pairs maintained but not expected.
	Unexpected []Pair
}

func (e *RelationMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "transitive closure mismatch: %d missing, %d unexpected", len(e.Missing), len(e.Unexpected))
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, "; missing %v", e.Missing)
	}
	if len(e.Unexpected) > 0 {
		fmt.Fprintf(&sb, "; unexpected %v", e.Unexpected)
	}
	return sb.String()
}

func (e *RelationMismatchError) Is(target error) bool {
	if target == tferrors.ErrInvariantFailure {
		return true
	}
	_, ok := target.(*RelationMismatchError)
	return ok
}
