package compare

import (
	"context"
	"errors"
	"testing"

	"github.com/mettamodeler/mettasim/pkg/activation"
	"github.com/mettamodeler/mettasim/pkg/model"
)

func mustGraph(t *testing.T, nodes []model.Node, edges []model.Edge) *model.Graph {
	t.Helper()
	g, err := model.NewGraph(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestComparisonSymmetry(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{
			{ID: "a", Value: 1, Type: model.NodeDriver},
			{ID: "b", Value: 0},
			{ID: "c", Value: 0.5},
		},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 0.5},
			{Source: "b", Target: "c", Weight: 0.3},
		},
	)
	c, err := Run(context.Background(), g, Options{
		Activation:    activation.Sigmoid,
		Threshold:     0.001,
		MaxIterations: 50,
		BaselineInitial: model.StateVector{
			"b": 0, "c": 0,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for id, d := range c.DeltaFinalState {
		want := c.ComparisonFinalState[id].Value - c.BaselineFinalState[id].Value
		if d.Value != want {
			t.Errorf("delta for %q = %v, want exactly %v", id, d.Value, want)
		}
	}
	if len(c.DeltaFinalState) != 3 {
		t.Errorf("expected delta entries for all 3 nodes, got %d", len(c.DeltaFinalState))
	}
	if len(c.ImpactMetrics) != 3 {
		t.Errorf("expected impact entries for all 3 nodes, got %d", len(c.ImpactMetrics))
	}
}

func TestConvergedRequiresBothRuns(t *testing.T) {
	// Baseline sits at the fixed point 0; the scenario feedback loop flips
	// sign every iteration and never settles.
	g := mustGraph(t,
		[]model.Node{{ID: "x", Value: 1}},
		[]model.Edge{{Source: "x", Target: "x", Weight: -5}},
	)
	c, err := Run(context.Background(), g, Options{
		Activation:      activation.Tanh,
		Threshold:       1e-6,
		MaxIterations:   10,
		BaselineInitial: model.StateVector{"x": 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Converged {
		t.Error("comparison must only converge when both runs converge")
	}
	if c.Iterations != 10 {
		t.Errorf("iterations = %d, want the larger run count 10", c.Iterations)
	}
}

func TestIterationsReportsLargerRun(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{
			{ID: "a", Value: 1, Type: model.NodeDriver},
			{ID: "b", Value: 0},
		},
		[]model.Edge{{Source: "a", Target: "b", Weight: 0.5}},
	)
	c, err := Run(context.Background(), g, Options{
		Activation:      activation.Tanh,
		Threshold:       0.0001,
		MaxIterations:   50,
		BaselineInitial: model.StateVector{"a": 0, "b": 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	baseIters := len(c.BaselineTimeSeries["a"]) - 1
	scenIters := len(c.ComparisonTimeSeries["a"]) - 1
	want := baseIters
	if scenIters > want {
		want = scenIters
	}
	if c.Iterations != want {
		t.Errorf("iterations = %d, want max of both runs %d", c.Iterations, want)
	}
}

func TestIdenticalRunsShowNoChange(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "a", Value: 0.7}, {ID: "b", Value: 0.2}},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 0.6},
			{Source: "b", Target: "a", Weight: -0.4},
		},
	)
	c, err := Run(context.Background(), g, Options{
		Activation:    activation.Sigmoid,
		Threshold:     0.001,
		MaxIterations: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	for id, impact := range c.ImpactMetrics {
		if impact.Direction != "No Change" {
			t.Errorf("%q: identical runs must classify as No Change, got %q", id, impact.Direction)
		}
		if impact.Delta != 0 {
			t.Errorf("%q: delta = %v, want 0", id, impact.Delta)
		}
		if impact.AUC != 0 {
			t.Errorf("%q: auc = %v, want 0", id, impact.AUC)
		}
	}
}

func TestClampsApplyToScenarioOnly(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "a", Value: 1}, {ID: "b", Value: 0}},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 1},
			{Source: "b", Target: "a", Weight: 0.5},
		},
	)
	c, err := Run(context.Background(), g, Options{
		Activation:    activation.Sigmoid,
		Threshold:     0.001,
		MaxIterations: 30,
		ClampedNodes:  []string{"b"},
		ClampedValues: map[string]float64{"b": 0.9},
	})
	if err != nil {
		t.Fatal(err)
	}
	for tstep := 1; tstep < len(c.ComparisonTimeSeries["b"]); tstep++ {
		if got := c.ComparisonTimeSeries["b"][tstep]; got != 0.9 {
			t.Fatalf("scenario b at step %d = %v, want clamp 0.9", tstep, got)
		}
	}
	// The baseline run must follow the transition rule instead.
	if got := c.BaselineTimeSeries["b"][1]; got == 0.9 {
		t.Error("baseline run must not inherit the scenario clamp")
	}
	if len(c.ClampedNodes) != 1 || c.ClampedNodes[0] != "b" {
		t.Errorf("ClampedNodes = %v, want [b]", c.ClampedNodes)
	}
}

func TestInvalidOptionsFailBeforeRunning(t *testing.T) {
	g := mustGraph(t, []model.Node{{ID: "a", Value: 0.5}}, nil)
	_, err := Run(context.Background(), g, Options{
		Activation:    activation.Sigmoid,
		Threshold:     0,
		MaxIterations: 10,
	})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
