package model

import (
	"math"

	"github.com/mettamodeler/mettasim/pkg/logging"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// Graph is a validated, directed, weighted concept graph. Node insertion
// order is preserved and used as the canonical order for all vectorized
// operations, so repeated builds from the same input are deterministic.
type Graph struct {
	dg     *simple.DirectedGraph
	order  []string // node ids in first-seen order
	nodes  map[string]Node
	ids    map[string]int64 // node id -> graph id (== canonical index)
	edges  []Edge           // validated edges, including self-loops
	inDeg  map[string]int
	outDeg map[string]int
}

// NewGraph builds a Graph from node and edge descriptions. At least one node
// is required and every node value must be finite. Edges referencing unknown
// endpoints are skipped with a warning, never fatal: simulation proceeds on
// the valid subgraph.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, Invalidf("at least one node is required")
	}

	g := &Graph{
		dg:     simple.NewDirectedGraph(),
		nodes:  make(map[string]Node, len(nodes)),
		ids:    make(map[string]int64, len(nodes)),
		inDeg:  make(map[string]int),
		outDeg: make(map[string]int),
	}

	for _, n := range nodes {
		if n.ID == "" {
			return nil, Invalidf("node with empty id")
		}
		if math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
			return nil, Invalidf("node %q has non-finite value", n.ID)
		}
		if _, dup := g.nodes[n.ID]; dup {
			logging.Warn("duplicate node id, keeping first occurrence", "node", n.ID)
			continue
		}
		if n.Type == "" {
			n.Type = NodeRegular
		}
		id := int64(len(g.order))
		g.nodes[n.ID] = n
		g.ids[n.ID] = id
		g.order = append(g.order, n.ID)
		g.dg.AddNode(simple.Node(id))
	}

	seen := make(map[[2]string]int, len(edges))
	for _, e := range edges {
		if _, ok := g.nodes[e.Source]; !ok {
			logging.Warn("edge references unknown source, skipping", "source", e.Source, "target", e.Target)
			continue
		}
		if _, ok := g.nodes[e.Target]; !ok {
			logging.Warn("edge references unknown target, skipping", "source", e.Source, "target", e.Target)
			continue
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, Invalidf("edge %s -> %s has non-finite weight", e.Source, e.Target)
		}
		key := [2]string{e.Source, e.Target}
		if i, dup := seen[key]; dup {
			// A repeated edge replaces the earlier weight.
			g.edges[i].Weight = e.Weight
			continue
		}
		seen[key] = len(g.edges)
		g.edges = append(g.edges, e)
		g.outDeg[e.Source]++
		g.inDeg[e.Target]++
		if e.Source != e.Target {
			// Self-loops stay out of the topology graph; they still
			// contribute to the weight matrix.
			g.dg.SetEdge(g.dg.NewEdge(simple.Node(g.ids[e.Source]), simple.Node(g.ids[e.Target])))
		}
	}

	return g, nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of validated edges, self-loops included.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in canonical order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// NodeIDs returns a copy of the node id list in canonical order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Index returns a node's position in the canonical order.
func (g *Graph) Index(id string) (int, bool) {
	gid, ok := g.ids[id]
	return int(gid), ok
}

// IDByIndex returns the node id at the given canonical position.
func (g *Graph) IDByIndex(i int) string {
	return g.order[i]
}

// Edges returns a copy of the validated edge list.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// InDegree returns the number of edges targeting the node, self-loops
// included. The count reflects edge presence, not weight: a zero-weight
// edge still counts as an input.
func (g *Graph) InDegree(id string) int {
	return g.inDeg[id]
}

// OutDegree returns the number of edges leaving the node, self-loops
// included.
func (g *Graph) OutDegree(id string) int {
	return g.outDeg[id]
}

// HasSelfLoop reports whether any node influences itself directly.
func (g *Graph) HasSelfLoop() bool {
	for _, e := range g.edges {
		if e.Source == e.Target {
			return true
		}
	}
	return false
}

// Directed exposes the self-loop-free topology for traversal and
// centrality algorithms.
func (g *Graph) Directed() graph.Directed {
	return g.dg
}

// InitialState returns a fresh state vector initialized from each node's
// declared value.
func (g *Graph) InitialState() StateVector {
	s := make(StateVector, len(g.order))
	for _, id := range g.order {
		s[id] = g.nodes[id].Value
	}
	return s
}

// AdjacencyMatrix returns the weight matrix in canonical node order, rows
// indexed by source and columns by target.
func (g *Graph) AdjacencyMatrix() *mat.Dense {
	n := len(g.order)
	m := mat.NewDense(n, n, nil)
	for _, e := range g.edges {
		m.Set(int(g.ids[e.Source]), int(g.ids[e.Target]), e.Weight)
	}
	return m
}
