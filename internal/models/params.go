package models

import (
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

type bound int

const (
	anyFinite bound = iota
	nonNegative
	positive
)

func check(name string, v float64, b bound) error {
	switch b {
	case nonNegative:
		return dynamo.CheckNonNegative(name, v)
	case positive:
		return dynamo.CheckPositive(name, v)
	}
	return dynamo.CheckFinite(name, v)
}

func unknownParam(name string) error {
	return &dynamo.InputError{Param: name, Value: math.NaN(), Reason: "is not a parameter of this model"}
}

// assign validates v against b and stores it in dst only on success, so a
// rejected SetParam leaves the model unchanged.
func assign(dst *float64, name string, v float64, b bound) error {
	if err := check(name, v, b); err != nil {
		return err
	}
	*dst = v
	return nil
}
