package network

import (
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

// UnknownNodeError is returned for a handle that does not name a node of the container.
type UnknownNodeError struct {
	Node NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("%s is not a node of this container", e.Node)
}

func (e *UnknownNodeError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*UnknownNodeError)
	return ok
}

// MissingCapabilityError is returned when a node is used in a role it cannot play, e.g. a
// node without Update appended as a child.
type MissingCapabilityError struct {
	Node       NodeID
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("%s is not a %s", e.Node, e.Capability)
}

func (e *MissingCapabilityError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*MissingCapabilityError)
	return ok
}

// UnexpectedParentError is returned by nodes with positional parents, such as joins, when a
// message arrives from a node they were not configured with.
type UnexpectedParentError struct {
	Node   NodeID
	Parent NodeID
}

func (e *UnexpectedParentError) Error() string {
	return fmt.Sprintf("%s received an update from %s, which is not one of its configured parents", e.Node, e.Parent)
}

func (e *UnexpectedParentError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*UnexpectedParentError)
	return ok
}

// UnsupportedMaskError is returned when asking a node for a view over a mask it does not
// maintain.
type UnsupportedMaskError struct {
	Node NodeID
	Mask string
}

func (e *UnsupportedMaskError) Error() string {
	return fmt.Sprintf("%s does not maintain a view for mask %s", e.Node, e.Mask)
}

func (e *UnsupportedMaskError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*UnsupportedMaskError)
	return ok
}

// FactNotFoundError is returned when retracting a base fact that is not present.
type FactNotFoundError struct {
	Node NodeID
	Fact fmt.Stringer
}

func (e *FactNotFoundError) Error() string {
	return fmt.Sprintf("cannot retract %s from %s: fact not present", e.Fact, e.Node)
}

func (e *FactNotFoundError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*FactNotFoundError)
	return ok
}

// FixedPointError is returned when a communication group does not converge within the
// configured number of rounds. Set semantics inside recursive groups (a Distinct node on
// every cycle) guarantee convergence, so this signals a wiring or algorithm defect.
type FixedPointError struct {
	Group  int
	Rounds int
}

func (e *FixedPointError) Error() string {
	return fmt.Sprintf("communication group %d did not reach a fixed point within %d rounds", e.Group, e.Rounds)
}

func (e *FixedPointError) Is(target error) bool {
	if target == tferrors.ErrInvariantFailure {
		return true
	}
	_, ok := target.(*FixedPointError)
	return ok
}

func capabilityUnsupported(node NodeID, surface string) error {
	return tferrors.With(fmt.Errorf("%s does not implement %s", node, surface), tferrors.ErrCapabilityUnsupported)
}
