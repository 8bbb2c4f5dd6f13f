// Package sim runs fuzzy cognitive map simulations: synchronous state
// updates over the weight matrix until the state stabilizes or the
// iteration budget runs out.
package sim

import (
	"context"
	"math"

	"github.com/mettamodeler/mettasim/pkg/activation"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultThreshold is the convergence threshold used when a request does
// not supply one.
const DefaultThreshold = 0.001

// DefaultMaxIterations is the iteration budget used when a request does
// not supply one.
const DefaultMaxIterations = 100

// Options configures a single run. Threshold and MaxIterations must be
// positive. Activation defaults to sigmoid when nil.
type Options struct {
	Activation    activation.Func
	Threshold     float64
	MaxIterations int

	// InitialValues overrides node starting values by id. Ids not in the
	// graph are ignored with a warning.
	InitialValues model.StateVector

	// ClampedNodes holds the listed nodes fixed for the whole run. A node
	// with an entry in ClampedValues is held at that value, otherwise at
	// its starting value.
	ClampedNodes  []string
	ClampedValues map[string]float64
}

// Result is the complete outcome of one run. TimeSeries index 0 is the
// initial state; every iteration appends one entry per node, so each
// series has Iterations+1 entries.
type Result struct {
	FinalState    map[string]model.NodeState `json:"finalState"`
	TimeSeries    model.TimeSeries           `json:"timeSeries"`
	Iterations    int                        `json:"iterations"`
	Converged     bool                       `json:"converged"`
	InitialValues model.StateVector          `json:"initialValues"`
	ClampedNodes  []string                   `json:"clampedNodes"`
}

// FinalValues flattens FinalState to a plain id -> value mapping.
func (r *Result) FinalValues() model.StateVector {
	s := make(model.StateVector, len(r.FinalState))
	for id, n := range r.FinalState {
		s[id] = n.Value
	}
	return s
}

// Simulator executes runs against one validated graph. It holds no state
// across runs; the same Simulator may be reused sequentially.
type Simulator struct {
	graph    *model.Graph
	act      activation.Func
	opts     Options
	initial  []float64       // resolved starting state, canonical order
	clamped  map[int]float64 // canonical index -> held value
	isolated []bool          // true when a node has no incoming edges
}

// New validates options against the graph and resolves the starting state.
// All validation errors surface here, before any iteration runs.
func New(g *model.Graph, opts Options) (*Simulator, error) {
	if g == nil {
		return nil, model.Invalidf("graph is required")
	}
	if !(opts.Threshold > 0) {
		return nil, model.Invalidf("threshold must be positive, got %v", opts.Threshold)
	}
	if opts.MaxIterations <= 0 {
		return nil, model.Invalidf("max iterations must be positive, got %d", opts.MaxIterations)
	}
	act := opts.Activation
	if act == nil {
		act = activation.Sigmoid
	}

	clampSet := make(map[string]bool, len(opts.ClampedNodes))
	for _, id := range opts.ClampedNodes {
		if _, ok := g.Index(id); !ok {
			logging.Warn("clamped node not in graph, ignoring", "node", id)
			continue
		}
		clampSet[id] = true
	}
	for id, v := range opts.ClampedValues {
		if !clampSet[id] {
			if _, inGraph := g.Index(id); !inGraph {
				logging.Warn("clamp value for unknown node, ignoring", "node", id)
				continue
			}
			return nil, model.Invalidf("clamp value for node %q but node is not in the clamp set", id)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.Invalidf("clamp value for node %q is not finite", id)
		}
	}

	initial := make([]float64, g.NodeCount())
	for i, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		initial[i] = n.Value
	}
	for id, v := range opts.InitialValues {
		i, ok := g.Index(id)
		if !ok {
			logging.Warn("initial value for unknown node, ignoring", "node", id)
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.Invalidf("initial value for node %q is not finite", id)
		}
		initial[i] = v
	}

	// A clamp without an explicit value holds the node at its starting value.
	clamped := make(map[int]float64, len(clampSet))
	for id := range clampSet {
		i, _ := g.Index(id)
		if v, ok := opts.ClampedValues[id]; ok {
			clamped[i] = v
		} else {
			clamped[i] = initial[i]
		}
	}

	// Nodes without incoming edges are never driven by the transition rule
	// and hold their value for the whole run.
	isolated := make([]bool, g.NodeCount())
	for i, id := range g.NodeIDs() {
		isolated[i] = g.InDegree(id) == 0
	}

	return &Simulator{graph: g, act: act, opts: opts, initial: initial, clamped: clamped, isolated: isolated}, nil
}

// Run iterates until the largest per-node change drops below the threshold
// or the iteration budget is exhausted. Exhaustion is not an error: the
// result reports it through Converged=false.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	n := s.graph.NodeCount()
	ids := s.graph.NodeIDs()
	adj := s.graph.AdjacencyMatrix()

	state := mat.NewVecDense(n, nil)
	for i, v := range s.initial {
		state.SetVec(i, v)
	}
	next := mat.NewVecDense(n, nil)
	raw := mat.NewVecDense(n, nil)

	series := make(model.TimeSeries, n)
	for i, id := range ids {
		buf := make([]float64, 1, s.opts.MaxIterations+1)
		buf[0] = state.AtVec(i)
		series[id] = buf
	}

	converged := false
	iterations := 0
	for iter := 1; iter <= s.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterations = iter

		// Every node's input sum reads the pre-iteration state.
		raw.MulVec(adj.T(), state)
		for i := 0; i < n; i++ {
			if v, ok := s.clamped[i]; ok {
				next.SetVec(i, v)
				continue
			}
			if s.isolated[i] {
				next.SetVec(i, state.AtVec(i))
				continue
			}
			next.SetVec(i, s.act(raw.AtVec(i)))
		}
		for i := 0; i < n; i++ {
			v := next.AtVec(i)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, failf(iter, ids[i], "value became non-finite (%v)", v)
			}
		}

		maxChange := floats.Distance(next.RawVector().Data, state.RawVector().Data, math.Inf(1))
		state.CopyVec(next)
		for i, id := range ids {
			series[id] = append(series[id], state.AtVec(i))
		}
		logging.Trace("iteration complete", "iteration", iter, "maxChange", maxChange)

		if maxChange < s.opts.Threshold {
			converged = true
			break
		}
	}

	final := make(map[string]model.NodeState, n)
	initialValues := make(model.StateVector, n)
	for i, id := range ids {
		node, _ := s.graph.Node(id)
		final[id] = model.NodeState{ID: id, Label: node.Label, Value: state.AtVec(i)}
		initialValues[id] = s.initial[i]
	}

	// Report clamps in canonical order so results are reproducible.
	var clampedIDs []string
	for i, id := range ids {
		if _, ok := s.clamped[i]; ok {
			clampedIDs = append(clampedIDs, id)
		}
	}

	logging.Debug("simulation finished",
		"iterations", iterations,
		"converged", converged,
		"nodes", n,
	)

	return &Result{
		FinalState:    final,
		TimeSeries:    series,
		Iterations:    iterations,
		Converged:     converged,
		InitialValues: initialValues,
		ClampedNodes:  clampedIDs,
	}, nil
}
