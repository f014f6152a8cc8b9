package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("order not found")
	ErrPersistence     = errors.New("persistence failure")
)

// Validation reasons.
const (
	ReasonNoLineItems  = "no line items"
	ReasonMissingPizza = "missing pizza"
	ReasonMissingSize  = "missing size"
)

// InvalidArgumentError reports a rejected order request. It matches
// ErrInvalidArgument.
type InvalidArgumentError struct {
	// Line is the index of the offending line request, or -1 for the whole request.
	Line   int
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("invalid argument: %s", e.Reason)
	}
	return fmt.Sprintf("invalid argument: %s (line %d)", e.Reason, e.Line)
}

// Is makes errors.Is(err, ErrInvalidArgument) hold.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// PersistenceError wraps a storage failure. The transaction was rolled back
// before it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrPersistence, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrPersistence) hold.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// persistence classifies a store error. Not-found passes through untouched.
func persistence(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, op)
	}
	return &PersistenceError{Op: op, Err: err}
}
