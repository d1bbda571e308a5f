package cluster

import (
	"errors"
	"fmt"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

var ErrAlreadyRunning = tferrors.With(errors.New("cluster is already running"), tferrors.ErrContractViolation)

// UnknownContainerError is returned when an address names a container that is not part of
// the cluster.
type UnknownContainerError struct {
	Container string
}

func (e *UnknownContainerError) Error() string {
	return fmt.Sprintf("container '%s' is not part of the cluster", e.Container)
}

func (e *UnknownContainerError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*UnknownContainerError)
	return ok
}

type DuplicateContainerError struct {
	Container string
}

func (e *DuplicateContainerError) Error() string {
	return fmt.Sprintf("container '%s' already exists", e.Container)
}

func (e *DuplicateContainerError) Is(target error) bool {
	if target == tferrors.ErrContractViolation {
		return true
	}
	_, ok := target.(*DuplicateContainerError)
	return ok
}

// ContainerClosedError is returned when a message is sent to a container that stopped
// serving.
type ContainerClosedError struct {
	Container string
}

func (e *ContainerClosedError) Error() string {
	return fmt.Sprintf("container '%s' is closed", e.Container)
}

func (e *ContainerClosedError) Is(target error) bool {
	if target == tferrors.ErrCancelled {
		return true
	}
	_, ok := target.(*ContainerClosedError)
	return ok
}
