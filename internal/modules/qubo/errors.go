package qubo

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDimension = errors.New("invalid dimension")
	ErrInvalidBudget    = errors.New("invalid budget")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrProblemTooLarge  = errors.New("problem too large for exhaustive evaluation")
)

// DimensionError reports a vector or matrix whose length does not match the universe.
type DimensionError struct {
	Field string
	Got   int
	Want  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %s has length %d, expected %d", e.Field, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrInvalidDimension }

// BudgetError reports a budget outside [0, n].
type BudgetError struct {
	Budget int
	Assets int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("invalid budget: %d is outside [0, %d]", e.Budget, e.Assets)
}

func (e *BudgetError) Unwrap() error { return ErrInvalidBudget }

// ParameterError reports a scalar or matrix entry violating its constraint.
type ParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidDimension) ||
		errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrProblemTooLarge)
}
