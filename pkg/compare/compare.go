// Package compare runs baseline/scenario simulation pairs and derives
// per-node impact metrics from the divergence between the two trajectories.
package compare

import (
	"context"

	"github.com/mettamodeler/mettasim/pkg/activation"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// Options configures a comparison. Both runs share the graph, activation,
// threshold and iteration budget; they differ only in initial values, and
// clamps apply to the scenario run alone.
type Options struct {
	Activation    activation.Func
	Threshold     float64
	MaxIterations int

	// BaselineInitial overrides starting values for the reference run.
	BaselineInitial model.StateVector

	// ScenarioInitial overrides starting values for the intervention run.
	ScenarioInitial model.StateVector

	ClampedNodes  []string
	ClampedValues map[string]float64
}

// Comparison is the combined outcome of a baseline and a scenario run.
// Converged requires both runs to have converged; Iterations reports the
// longer of the two.
type Comparison struct {
	BaselineFinalState   map[string]model.NodeState `json:"baselineFinalState"`
	ComparisonFinalState map[string]model.NodeState `json:"comparisonFinalState"`
	BaselineTimeSeries   model.TimeSeries           `json:"baselineTimeSeries"`
	ComparisonTimeSeries model.TimeSeries           `json:"comparisonTimeSeries"`
	DeltaFinalState      map[string]model.NodeState `json:"deltaFinalState"`
	ImpactMetrics        map[string]Impact          `json:"impactMetrics"`
	Converged            bool                       `json:"converged"`
	Iterations           int                        `json:"iterations"`
	ClampedNodes         []string                   `json:"clampedNodes"`
}

// Run executes the baseline and scenario simulations and assembles the
// comparison. A failure in either run fails the whole comparison; nothing
// partial is returned.
func Run(ctx context.Context, g *model.Graph, opts Options) (*Comparison, error) {
	baseline, err := sim.New(g, sim.Options{
		Activation:    opts.Activation,
		Threshold:     opts.Threshold,
		MaxIterations: opts.MaxIterations,
		InitialValues: opts.BaselineInitial,
	})
	if err != nil {
		return nil, err
	}
	scenario, err := sim.New(g, sim.Options{
		Activation:    opts.Activation,
		Threshold:     opts.Threshold,
		MaxIterations: opts.MaxIterations,
		InitialValues: opts.ScenarioInitial,
		ClampedNodes:  opts.ClampedNodes,
		ClampedValues: opts.ClampedValues,
	})
	if err != nil {
		return nil, err
	}

	baseResult, err := baseline.Run(ctx)
	if err != nil {
		return nil, err
	}
	scenResult, err := scenario.Run(ctx)
	if err != nil {
		return nil, err
	}

	delta := make(map[string]model.NodeState, len(scenResult.FinalState))
	for id, scen := range scenResult.FinalState {
		base, ok := baseResult.FinalState[id]
		if !ok {
			continue
		}
		delta[id] = model.NodeState{ID: id, Label: scen.Label, Value: scen.Value - base.Value}
	}

	iterations := baseResult.Iterations
	if scenResult.Iterations > iterations {
		iterations = scenResult.Iterations
	}

	logging.Debug("comparison finished",
		"baselineIterations", baseResult.Iterations,
		"scenarioIterations", scenResult.Iterations,
		"converged", baseResult.Converged && scenResult.Converged,
	)

	return &Comparison{
		BaselineFinalState:   baseResult.FinalState,
		ComparisonFinalState: scenResult.FinalState,
		BaselineTimeSeries:   baseResult.TimeSeries,
		ComparisonTimeSeries: scenResult.TimeSeries,
		DeltaFinalState:      delta,
		ImpactMetrics:        Analyze(baseResult, scenResult),
		Converged:            baseResult.Converged && scenResult.Converged,
		Iterations:           iterations,
		ClampedNodes:         scenResult.ClampedNodes,
	}, nil
}
