// Package schema parses and normalizes simulation request payloads. The
// wire format has accumulated several historical shapes (nested node data,
// flat nodes, quoted numbers, legacy aliases); everything is folded into
// the strict model types here so the engine never sees shape variance.
package schema

import (
	"encoding/json"
	"sort"

	"github.com/mettamodeler/mettasim/pkg/activation"
	"github.com/mettamodeler/mettasim/pkg/compare"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// SchemaVersion is the payload version this package understands.
const SchemaVersion = "1.0.0"

// nodePayload accepts both the nested editor shape {id, data:{value,...}}
// and the flat shape {id, value, ...}. Nested data wins when both appear.
type nodePayload struct {
	ID    string       `json:"id"`
	Label string       `json:"label"`
	Value *flexFloat   `json:"value"`
	Type  string       `json:"type"`
	Data  *nodeDetails `json:"data"`
}

type nodeDetails struct {
	Label string     `json:"label"`
	Value *flexFloat `json:"value"`
	Type  string     `json:"type"`
}

type edgePayload struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Weight *flexFloat   `json:"weight"`
	Data   *edgeDetails `json:"data"`
}

type edgeDetails struct {
	Weight *flexFloat `json:"weight"`
}

// Intervention is the legacy nested scenario block. Its fields fill in
// top-level clamp and override fields when those are absent.
type Intervention struct {
	ClampedNodes  []string             `json:"clampedNodes"`
	ClampedValues map[string]flexFloat `json:"clampedValues"`
	NodeValues    map[string]flexFloat `json:"nodeValues"`
}

// SimulationRequest is the full request surface, current and legacy
// fields included. Use Parse to build one from raw JSON.
type SimulationRequest struct {
	SchemaVersion string        `json:"schemaVersion"`
	Nodes         []nodePayload `json:"nodes"`
	Edges         []edgePayload `json:"edges"`

	Activation    string     `json:"activation"`
	Threshold     *flexFloat `json:"threshold"`
	MaxIterations *flexInt   `json:"maxIterations"`

	CompareToBaseline bool `json:"compareToBaseline"`
	GenerateNotebook  bool `json:"generateNotebook"`

	InitialNodeValues    map[string]flexFloat `json:"initialNodeValues"`
	ClampedNodes         []string             `json:"clampedNodes"`
	ClampedValues        map[string]flexFloat `json:"clampedValues"`
	InterventionScenario *Intervention        `json:"interventionScenario"`

	// ActivationFunction is the legacy alias for Activation.
	ActivationFunction string `json:"activationFunction"`

	ModelInitialValues    map[string]flexFloat `json:"modelInitialValues"`
	ScenarioInitialValues map[string]flexFloat `json:"scenarioInitialValues"`

	// Accepted but unused forward-compatible fields.
	EdgeRules     json.RawMessage `json:"edgeRules"`
	PromotedNodes []string        `json:"promotedNodes"`
	Metadata      json.RawMessage `json:"metadata"`
}

var knownFields = map[string]bool{
	"schemaVersion": true, "nodes": true, "edges": true,
	"activation": true, "threshold": true, "maxIterations": true,
	"compareToBaseline": true, "generateNotebook": true,
	"initialNodeValues": true, "clampedNodes": true, "clampedValues": true,
	"interventionScenario": true, "activationFunction": true,
	"modelInitialValues": true, "scenarioInitialValues": true,
	"edgeRules": true, "promotedNodes": true, "metadata": true,
}

// Parse decodes a request payload and applies defaults and legacy alias
// resolution. Unknown top-level fields are tolerated and logged, never
// rejected.
func Parse(data []byte) (*SimulationRequest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, model.Invalidf("malformed request body: %v", err)
	}

	var unknown []string
	for name := range fields {
		if !knownFields[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		logging.Warn("request carries unknown fields", "fields", unknown)
	}

	var req SimulationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, model.Invalidf("malformed request body: %v", err)
	}
	req.normalize()
	return &req, nil
}

// normalize applies defaults and folds legacy fields into their current
// equivalents.
func (r *SimulationRequest) normalize() {
	if r.SchemaVersion == "" {
		r.SchemaVersion = SchemaVersion
	}
	if r.Activation == "" {
		r.Activation = r.ActivationFunction
	}
	if r.Threshold == nil {
		def := flexFloat(sim.DefaultThreshold)
		r.Threshold = &def
	}
	if r.MaxIterations == nil {
		def := flexInt(sim.DefaultMaxIterations)
		r.MaxIterations = &def
	}

	if s := r.InterventionScenario; s != nil {
		if len(r.ClampedNodes) == 0 {
			r.ClampedNodes = s.ClampedNodes
		}
		if len(r.ClampedValues) == 0 {
			r.ClampedValues = s.ClampedValues
		}
		if len(r.InitialNodeValues) == 0 {
			r.InitialNodeValues = s.NodeValues
		}
	}
}

// Graph validates the payload's nodes and edges into a model graph.
func (r *SimulationRequest) Graph() (*model.Graph, error) {
	nodes := make([]model.Node, 0, len(r.Nodes))
	for _, raw := range r.Nodes {
		nodes = append(nodes, raw.toNode())
	}
	edges := make([]model.Edge, 0, len(r.Edges))
	for _, raw := range r.Edges {
		edges = append(edges, raw.toEdge())
	}
	return model.NewGraph(nodes, edges)
}

func (p nodePayload) toNode() model.Node {
	n := model.Node{
		ID:    p.ID,
		Label: p.Label,
		Type:  model.NodeType(p.Type),
	}
	if p.Value != nil {
		n.Value = float64(*p.Value)
	}
	if p.Data != nil {
		if p.Data.Value != nil {
			n.Value = float64(*p.Data.Value)
		}
		if p.Data.Label != "" {
			n.Label = p.Data.Label
		}
		if p.Data.Type != "" {
			n.Type = model.NodeType(p.Data.Type)
		}
	}
	if p.Value == nil && (p.Data == nil || p.Data.Value == nil) {
		logging.Warn("node carries no value, defaulting to 0", "node", p.ID)
	}
	return n
}

func (p edgePayload) toEdge() model.Edge {
	e := model.Edge{Source: p.Source, Target: p.Target}
	if p.Weight != nil {
		e.Weight = float64(*p.Weight)
	}
	if p.Data != nil && p.Data.Weight != nil {
		e.Weight = float64(*p.Data.Weight)
	}
	return e
}

// SetThreshold overrides the convergence threshold.
func (r *SimulationRequest) SetThreshold(v float64) {
	f := flexFloat(v)
	r.Threshold = &f
}

// SetMaxIterations overrides the iteration limit.
func (r *SimulationRequest) SetMaxIterations(n int) {
	i := flexInt(n)
	r.MaxIterations = &i
}

// SimOptions assembles engine options for a plain simulation run. An
// unknown activation name fails here, before any graph work happens.
func (r *SimulationRequest) SimOptions() (sim.Options, error) {
	act, err := activation.ByName(r.Activation)
	if err != nil {
		return sim.Options{}, err
	}
	return sim.Options{
		Activation:    act,
		Threshold:     float64(*r.Threshold),
		MaxIterations: int(*r.MaxIterations),
		InitialValues: floatMap(r.InitialNodeValues),
		ClampedNodes:  r.ClampedNodes,
		ClampedValues: floatMap(r.ClampedValues),
	}, nil
}

// BaselineInitial resolves the reference run's starting values: the
// explicit modelInitialValues when given, otherwise the no-intervention
// convention where every non-driver node starts at 0 and driver nodes
// keep their declared value.
func (r *SimulationRequest) BaselineInitial() model.StateVector {
	if len(r.ModelInitialValues) > 0 {
		return model.StateVector(floatMap(r.ModelInitialValues))
	}
	baseline := make(model.StateVector, len(r.Nodes))
	for _, raw := range r.Nodes {
		n := raw.toNode()
		if n.Type == model.NodeDriver {
			baseline[n.ID] = n.Value
		} else {
			baseline[n.ID] = 0
		}
	}
	return baseline
}

// ScenarioInitial resolves the intervention run's starting values.
func (r *SimulationRequest) ScenarioInitial() model.StateVector {
	if len(r.ScenarioInitialValues) > 0 {
		return model.StateVector(floatMap(r.ScenarioInitialValues))
	}
	return model.StateVector(floatMap(r.InitialNodeValues))
}

// CompareOptions assembles the baseline/scenario run configuration.
func (r *SimulationRequest) CompareOptions() (compare.Options, error) {
	act, err := activation.ByName(r.Activation)
	if err != nil {
		return compare.Options{}, err
	}
	return compare.Options{
		Activation:      act,
		Threshold:       float64(*r.Threshold),
		MaxIterations:   int(*r.MaxIterations),
		BaselineInitial: r.BaselineInitial(),
		ScenarioInitial: r.ScenarioInitial(),
		ClampedNodes:    r.ClampedNodes,
		ClampedValues:   floatMap(r.ClampedValues),
	}, nil
}
