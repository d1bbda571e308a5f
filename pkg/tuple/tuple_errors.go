package tuple

import (
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

// IndexOutOfRangeError is returned by Get for a position outside of the tuple.
type IndexOutOfRangeError struct {
	Index int
	Size  int
}

func (i *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range for tuple of size %d", i.Index, i.Size)
}

func (i *IndexOutOfRangeError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*IndexOutOfRangeError)
	return ok
}

// InvalidElementError is returned if a tuple holds a negative identifier.
type InvalidElementError struct {
	Tuple    Tuple
	Position int
}

func (i *InvalidElementError) Error() string {
	return fmt.Sprintf("invalid tuple '%s'. Reason: element at position %d is negative", i.Tuple, i.Position)
}

func (i *InvalidElementError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*InvalidElementError)
	return ok
}

// InvalidMaskError is returned if a mask refers to positions outside of its source arity.
type InvalidMaskError struct {
	SourceArity int
	Position    int
}

func (i *InvalidMaskError) Error() string {
	return fmt.Sprintf("mask position %d out of range for source arity %d", i.Position, i.SourceArity)
}

func (i *InvalidMaskError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*InvalidMaskError)
	return ok
}

// ArityMismatchError is returned when a tuple is projected through, or looked up with, a
// mask configured for a different arity.
type ArityMismatchError struct {
	Tuple    Tuple
	Expected int
}

func (i *ArityMismatchError) Error() string {
	return fmt.Sprintf("tuple '%s' has arity %d, expected %d", i.Tuple, i.Tuple.Size(), i.Expected)
}

func (i *ArityMismatchError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*ArityMismatchError)
	return ok
}
