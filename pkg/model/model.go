package model

// NodeType classifies the causal role of a concept node
type NodeType string

const (
	NodeRegular NodeType = "regular" // ordinary concept, free to evolve
	NodeDriver  NodeType = "driver"  // externally-set cause
	NodeOutput  NodeType = "output"  // read-out concept
)

// Node represents a concept in a fuzzy cognitive map
type Node struct {
	ID    string   `json:"id"`    // Unique node identifier
	Label string   `json:"label"` // Human-readable name
	Value float64  `json:"value"` // Initial state value
	Type  NodeType `json:"type"`  // regular, driver, or output
}

// Edge represents a weighted causal influence between two concepts.
// A positive weight reinforces the target, a negative weight inhibits it.
type Edge struct {
	Source string  `json:"source"` // Source node id
	Target string  `json:"target"` // Target node id
	Weight float64 `json:"weight"` // Influence strength and sign
}

// StateVector maps every node id to its value at one time step.
// Its key set always equals the node id set of the graph it was built from.
type StateVector map[string]float64

// Clone returns an independent copy of the state vector.
func (s StateVector) Clone() StateVector {
	c := make(StateVector, len(s))
	for id, v := range s {
		c[id] = v
	}
	return c
}

// NodeState is a resolved node value paired with the node's identity,
// used in final-state and delta-state mappings.
type NodeState struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// TimeSeries maps node ids to their value trajectories. Index 0 is the
// initial state; one entry is appended per iteration. All sequences in a
// TimeSeries have equal length.
type TimeSeries map[string][]float64
