package condition

import (
	"errors"
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

var ErrEvaluationFailed = errors.New("failed to evaluate predicate")

// CompilationError is returned when a predicate expression does not compile to a boolean
// CEL program. It is a contract violation: the network was wired with a broken predicate.
type CompilationError struct {
	Predicate string
	Cause     error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile predicate '%s': %s", e.Predicate, e.Cause)
}

func (e *CompilationError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*CompilationError)
	return ok
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

type EvaluationError struct {
	Predicate string
	Cause     error
}

func NewEvaluationError(predicate string, cause error) error {
	return tferrors.With(&EvaluationError{Predicate: predicate, Cause: cause}, ErrEvaluationFailed)
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate predicate '%s': %s", e.Predicate, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
