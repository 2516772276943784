package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// ValidationError reports a violated domain invariant. The message is part of
// the contract: callers and tests match on its exact form.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// StateError reports an illegal aggregate state transition. These indicate a
// programming or integration bug, not an expected runtime condition.
type StateError struct {
	Op     string
	Status OrderStatus
}

func (e StateError) Error() string {
	return fmt.Sprintf("order is not in correct state for %s operation: %s", e.Op, e.Status)
}
