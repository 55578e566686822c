package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a coarse-grained categorization of build failures.
type ErrorKind string

const (
	KindInvalidParameter   ErrorKind = "invalid_parameter"
	KindGeometryConstraint ErrorKind = "geometry_constraint_violation"
	KindKernelOperation    ErrorKind = "kernel_operation_failure"
	KindMeshCompute        ErrorKind = "mesh_compute_error"
	KindEdgeNotFound       ErrorKind = "edge_not_found"
	KindOptimizationFailed ErrorKind = "optimization_failed"
)

// Sentinel errors, one per kind, usable with errors.Is.
var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrGeometryConstraint = errors.New("geometry constraint violation")
	ErrKernelOperation    = errors.New("kernel operation failure")
	ErrMeshCompute        = errors.New("mesh compute error")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrOptimizationFailed = errors.New("optimization failed")
)

var sentinels = map[ErrorKind]error{
	KindInvalidParameter:   ErrInvalidParameter,
	KindGeometryConstraint: ErrGeometryConstraint,
	KindKernelOperation:    ErrKernelOperation,
	KindMeshCompute:        ErrMeshCompute,
	KindEdgeNotFound:       ErrEdgeNotFound,
	KindOptimizationFailed: ErrOptimizationFailed,
}

// Error wraps an underlying error with operation context and a kind.
type Error struct {
	Op    string
	Kind  ErrorKind
	Stage BuildStage // Optional: stage of the build that failed
	Err   error
}

// NewError builds an Error with a formatted message as its cause.
func NewError(op string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WrapError attaches operation context and a kind to err.
func WrapError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Stage != "" {
		base += fmt.Sprintf(" (stage=%s)", e.Stage)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the sentinel error of the receiver's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// IsKind helps callers classify errors without depending on the engine.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
