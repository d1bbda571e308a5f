// Package errors defines the error kinds shared by the network, the indexers and the
// reachability engine, and a helper to attach a kind to a concrete error value.
package errors

import (
	"errors"
	reflectlite "reflect"
)

var (
	// ErrContractViolation marks a wiring defect: an unknown node, an unconfigured mask or
	// key, or a missing capability. It is never retried.
	ErrContractViolation = errors.New("contract violation")

	// ErrInvariantFailure marks internal state that disagrees with an externally supplied
	// ground truth.
	ErrInvariantFailure = errors.New("invariant failure")

	// ErrCancelled is returned when a fixed-point loop is aborted between rounds.
	ErrCancelled = errors.New("evaluation cancelled")

	// ErrCapabilityUnsupported is returned when a node kind does not implement an optional
	// surface.
	ErrCapabilityUnsupported = errors.New("capability unsupported")
)

// With returns an error that represents top wrapped on top of the base error.
// The message of the result is the message of base.
func With(base, top error) error {
	if base == nil && top == nil {
		return nil
	}
	if top == nil {
		return base
	}
	if base == nil {
		return top
	}
	return union{error: base, top: top}
}

// IsContractViolation reports whether err is, or wraps, a contract violation.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

type union struct {
	error
	top error
}

func (u union) Is(target error) bool {
	// Copied from errors.Is, but without iterative unwrapping.
	// If top doesn't match, errors.Is will Unwrap, which does the right thing.
	if target == nil {
		return false
	}

	isComparable := reflectlite.TypeOf(target).Comparable()
	if isComparable && u.top == target {
		return true
	}
	if x, ok := u.top.(interface{ Is(error) bool }); ok && x.Is(target) {
		return true
	}
	return false
}

func (u union) As(target any) bool {
	if target == nil {
		panic("errors: target cannot be nil")
	}
	val := reflectlite.ValueOf(target)
	typ := val.Type()
	if typ.Kind() != reflectlite.Ptr || val.IsNil() {
		panic("errors: target must be a non-nil pointer")
	}
	targetType := typ.Elem()
	if targetType.Kind() != reflectlite.Interface && !targetType.Implements(errorType) {
		panic("errors: *target must be interface or implement error")
	}
	if reflectlite.TypeOf(u.top).AssignableTo(targetType) {
		val.Elem().Set(reflectlite.ValueOf(u.top))
		return true
	}
	if x, ok := u.top.(interface{ As(any) bool }); ok && x.As(target) {
		return true
	}
	return false
}

var errorType = reflectlite.TypeOf((*error)(nil)).Elem()

func (u union) Unwrap() error {
	if err := errors.Unwrap(u.top); err != nil {
		return union{error: u.error, top: err}
	}
	// otherwise we ran out of errors on top to unwrap, so return the underlying error.
	return u.error
}
