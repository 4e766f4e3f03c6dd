package analysis

import (
	"errors"
	"fmt"
)

// ErrInfeasible is matched by every model-fit failure (errors.Is).
var ErrInfeasible = errors.New("model fit infeasible")

// InfeasibleError explains why a linear model cannot be estimated from a
// grouped-count table.
type InfeasibleError struct {
	Reason string
	// Rows and Params are set when the table is too small for the design.
	Rows   int
	Params int
	// Factor and Levels are set when a categorical factor has no contrast.
	Factor string
	Levels int
}

func (e *InfeasibleError) Error() string {
	switch {
	case e.Factor != "":
		return fmt.Sprintf("model fit infeasible: factor %s has %d distinct level(s), need at least 2", e.Factor, e.Levels)
	case e.Params > 0:
		return fmt.Sprintf("model fit infeasible: %s (%d rows, %d parameters)", e.Reason, e.Rows, e.Params)
	default:
		return "model fit infeasible: " + e.Reason
	}
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }
