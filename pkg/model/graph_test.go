package model

import (
	"errors"
	"math"
	"testing"
)

func TestNewGraphRequiresNodes(t *testing.T) {
	_, err := NewGraph(nil, nil)
	if err == nil {
		t.Fatal("expected error for empty node set")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewGraphRejectsNonFiniteValue(t *testing.T) {
	nodes := []Node{
		{ID: "a", Value: 0.5},
		{ID: "b", Value: math.NaN()},
	}
	_, err := NewGraph(nodes, nil)
	if err == nil {
		t.Fatal("expected error for NaN node value")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewGraphRejectsNonFiniteWeight(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{{Source: "a", Target: "b", Weight: math.Inf(1)}}
	_, err := NewGraph(nodes, edges)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewGraphKeepsFirstDuplicateNode(t *testing.T) {
	nodes := []Node{
		{ID: "a", Value: 0.3},
		{ID: "a", Value: 0.9},
	}
	g, err := NewGraph(nodes, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
	n, _ := g.Node("a")
	if n.Value != 0.3 {
		t.Errorf("expected first occurrence to win, got value %v", n.Value)
	}
}

func TestNewGraphSkipsUnknownEndpoints(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{
		{Source: "a", Target: "b", Weight: 0.5},
		{Source: "a", Target: "missing", Weight: 1},
		{Source: "ghost", Target: "b", Weight: 1},
	}
	g, err := NewGraph(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge after skipping unknown endpoints, got %d", g.EdgeCount())
	}
}

func TestNewGraphRepeatedEdgeKeepsLastWeight(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{
		{Source: "a", Target: "b", Weight: 0.2},
		{Source: "a", Target: "b", Weight: -0.7},
	}
	g, err := NewGraph(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected repeated edge to collapse, got %d edges", g.EdgeCount())
	}
	if w := g.AdjacencyMatrix().At(0, 1); w != -0.7 {
		t.Errorf("expected last weight -0.7, got %v", w)
	}
}

func TestGraphCanonicalOrder(t *testing.T) {
	nodes := []Node{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	g, err := NewGraph(nodes, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c", "a", "b"}
	got := g.NodeIDs()
	if len(got) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	for i, id := range want {
		idx, ok := g.Index(id)
		if !ok || idx != i {
			t.Errorf("Index(%q) = %d, %v; want %d, true", id, idx, ok, i)
		}
		if g.IDByIndex(i) != id {
			t.Errorf("IDByIndex(%d) = %q; want %q", i, g.IDByIndex(i), id)
		}
	}
}

func TestGraphInitialState(t *testing.T) {
	nodes := []Node{
		{ID: "a", Value: 1},
		{ID: "b", Value: -0.25},
	}
	g, err := NewGraph(nodes, nil)
	if err != nil {
		t.Fatal(err)
	}
	s := g.InitialState()
	if s["a"] != 1 || s["b"] != -0.25 {
		t.Errorf("unexpected initial state: %v", s)
	}
	s["a"] = 99
	if fresh := g.InitialState(); fresh["a"] != 1 {
		t.Error("InitialState must return an independent copy")
	}
}

func TestGraphDefaultsNodeType(t *testing.T) {
	g, err := NewGraph([]Node{{ID: "a"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	n, _ := g.Node("a")
	if n.Type != NodeRegular {
		t.Errorf("expected default type %q, got %q", NodeRegular, n.Type)
	}
}

func TestAdjacencyMatrixIncludesSelfLoop(t *testing.T) {
	nodes := []Node{{ID: "a"}, {ID: "b"}}
	edges := []Edge{
		{Source: "a", Target: "b", Weight: 0.5},
		{Source: "b", Target: "b", Weight: -0.3},
	}
	g, err := NewGraph(nodes, edges)
	if err != nil {
		t.Fatal(err)
	}
	m := g.AdjacencyMatrix()
	if got := m.At(0, 1); got != 0.5 {
		t.Errorf("expected weight 0.5 at (0,1), got %v", got)
	}
	if got := m.At(1, 1); got != -0.3 {
		t.Errorf("expected self-loop weight -0.3 at (1,1), got %v", got)
	}
	if !g.HasSelfLoop() {
		t.Error("expected HasSelfLoop to report true")
	}
	// Topology excludes the self-loop.
	if g.Directed().Edge(1, 1) != nil {
		t.Error("topology graph must not carry self-loops")
	}
}

func TestStateVectorClone(t *testing.T) {
	s := StateVector{"a": 1, "b": 2}
	c := s.Clone()
	c["a"] = 5
	if s["a"] != 1 {
		t.Error("Clone must not share storage")
	}
}

func TestInputErrorMessage(t *testing.T) {
	err := Invalidf("node %q has non-finite value", "x")
	want := `invalid input: node "x" has non-finite value`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
