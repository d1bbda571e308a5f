package indexer

import (
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// TupleNotFoundError is returned when retracting a tuple the indexer does not hold.
type TupleNotFoundError struct {
	Tuple tuple.Tuple
}

func (e *TupleNotFoundError) Error() string {
	return fmt.Sprintf("cannot retract %s: tuple not present in index", e.Tuple)
}

func (e *TupleNotFoundError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*TupleNotFoundError)
	return ok
}

// SignatureArityError is returned by lookups with a signature whose arity differs from the
// arity of the indexer mask.
type SignatureArityError struct {
	Signature tuple.Tuple
	Expected  int
}

func (e *SignatureArityError) Error() string {
	return fmt.Sprintf("signature %s has arity %d, index mask selects %d positions", e.Signature, e.Signature.Size(), e.Expected)
}

func (e *SignatureArityError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*SignatureArityError)
	return ok
}
