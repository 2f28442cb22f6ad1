package strategy

import (
	"errors"
	"fmt"

	"symphonybacktest/internal/marketdata"
)

// MalformedExpressionError indicates a structurally invalid program (wrong
// arity, wrong element type). It is fatal for the whole run.
type MalformedExpressionError struct {
	Detail string
}

func (e MalformedExpressionError) Error() string {
	return fmt.Sprintf("malformed expression: %s", e.Detail)
}

func malformedf(format string, args ...any) error {
	return MalformedExpressionError{Detail: fmt.Sprintf(format, args...)}
}

// UnknownOperatorError indicates an operator tag outside the fixed set.
// Also fatal: it means the program is corrupt, not that data is thin.
type UnknownOperatorError struct {
	Operator string
}

func (e UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// IsDataUnavailable reports whether err is a missing price/indicator lookup.
// The evaluator aborts the date on these; a filter just drops the candidate;
// the simulator skips the day's trading.
func IsDataUnavailable(err error) bool {
	var missing marketdata.MissingDataError
	return errors.As(err, &missing)
}

// IsFatal reports whether err indicates a corrupt program rather than an
// expected runtime condition.
func IsFatal(err error) bool {
	var malformed MalformedExpressionError
	var unknown UnknownOperatorError
	return errors.As(err, &malformed) || errors.As(err, &unknown)
}
