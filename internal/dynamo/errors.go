package dynamo

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced to callers. None of them is fatal and none is
// transient: the same inputs always fail the same way.
var (
	// ErrInvalidInput marks a missing, non-finite or out-of-domain parameter.
	ErrInvalidInput = errors.New("dynamo: invalid input")

	// ErrIntegration marks a solver run that could not produce a finite trajectory.
	ErrIntegration = errors.New("dynamo: integration failure")

	// ErrExpression marks an unparseable, disallowed or failing vector field formula.
	ErrExpression = errors.New("dynamo: expression error")
)

const (
	KindInvalidInput = "invalid_input"
	KindIntegration  = "integration_failure"
	KindExpression   = "expression_error"
)

// KindOf maps an error to its taxonomy tag, or "" for foreign errors.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrIntegration):
		return KindIntegration
	case errors.Is(err, ErrExpression):
		return KindExpression
	}
	return ""
}

type InputError struct {
	Param  string
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason == "missing" {
		return fmt.Sprintf("invalid input: parameter %q is missing", e.Param)
	}
	return fmt.Sprintf("invalid input: %s=%g %s", e.Param, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// IntegrationError carries the solver position at the time of failure.
type IntegrationError struct {
	Step  int
	Time  float64
	State State
	Cause string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration failure at step %d (t=%.6g): %s", e.Step, e.Time, e.Cause)
}

func (e *IntegrationError) Unwrap() error { return ErrIntegration }

type ExpressionError struct {
	Component string
	Source    string
	Reason    string
}

func (e *ExpressionError) Error() string {
	if e.Component == "" {
		return fmt.Sprintf("expression error: %s", e.Reason)
	}
	return fmt.Sprintf("expression error in %s=%q: %s", e.Component, e.Source, e.Reason)
}

func (e *ExpressionError) Unwrap() error { return ErrExpression }
