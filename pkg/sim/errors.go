package sim

import (
	"errors"
	"fmt"
)

// ErrSimulationFailed marks a run aborted by a numeric failure mid-iteration,
// as opposed to invalid input rejected before the run began.
var ErrSimulationFailed = errors.New("simulation failed")

// SimulationError reports where a run broke down: which node produced a
// non-finite value and on which iteration.
type SimulationError struct {
	Iteration int
	Node      string
	Msg       string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("simulation failed at iteration %d: node %q: %s", e.Iteration, e.Node, e.Msg)
}

func (e *SimulationError) Unwrap() error {
	return ErrSimulationFailed
}

func failf(iteration int, node, format string, args ...any) error {
	return &SimulationError{
		Iteration: iteration,
		Node:      node,
		Msg:       fmt.Sprintf(format, args...),
	}
}
