package cycles

import (
	"reflect"
	"testing"

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

func TestFindFeedbackLoopsAcyclic(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 1},
			{Source: "b", Target: "c", Weight: 1},
		},
	)
	if loops := FindFeedbackLoops(g); len(loops) != 0 {
		t.Errorf("expected no loops in a DAG, got %v", loops)
	}
	if HasCycle(g) {
		t.Error("HasCycle must be false for a DAG")
	}
}

func TestFindFeedbackLoopsThreeCycle(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 1},
			{Source: "b", Target: "c", Weight: -1},
			{Source: "c", Target: "a", Weight: 0.5},
			{Source: "c", Target: "d", Weight: 1},
		},
	)
	loops := FindFeedbackLoops(g)
	if len(loops) != 1 {
		t.Fatalf("expected 1 loop, got %d", len(loops))
	}
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(loops[0].Nodes, want) {
		t.Errorf("loop members = %v, want %v", loops[0].Nodes, want)
	}
}

func TestFindFeedbackLoopsSelfLoop(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "a"}, {ID: "b"}},
		[]model.Edge{
			{Source: "a", Target: "b", Weight: 1},
			{Source: "b", Target: "b", Weight: -0.5},
		},
	)
	loops := FindFeedbackLoops(g)
	if len(loops) != 1 {
		t.Fatalf("expected 1 loop, got %d", len(loops))
	}
	if !reflect.DeepEqual(loops[0].Nodes, []string{"b"}) {
		t.Errorf("loop members = %v, want [b]", loops[0].Nodes)
	}
	if !HasCycle(g) {
		t.Error("a self-referencing edge is a feedback loop")
	}
}

func TestFindFeedbackLoopsMixed(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "p"}, {ID: "q"}, {ID: "r"}},
		[]model.Edge{
			{Source: "p", Target: "q", Weight: 1},
			{Source: "q", Target: "p", Weight: 1},
			{Source: "r", Target: "r", Weight: 1},
		},
	)
	loops := FindFeedbackLoops(g)
	if len(loops) != 2 {
		t.Fatalf("expected 2 loops, got %d: %v", len(loops), loops)
	}
	if !reflect.DeepEqual(loops[0].Nodes, []string{"p", "q"}) {
		t.Errorf("first loop = %v, want [p q]", loops[0].Nodes)
	}
	if !reflect.DeepEqual(loops[1].Nodes, []string{"r"}) {
		t.Errorf("second loop = %v, want [r]", loops[1].Nodes)
	}
}

func TestTwoSeparateCyclesOrdered(t *testing.T) {
	g := mustGraph(t,
		[]model.Node{{ID: "w"}, {ID: "x"}, {ID: "y"}, {ID: "z"}},
		[]model.Edge{
			{Source: "w", Target: "x", Weight: 1},
			{Source: "x", Target: "w", Weight: 1},
			{Source: "y", Target: "z", Weight: 1},
			{Source: "z", Target: "y", Weight: 1},
		},
	)
	loops := FindFeedbackLoops(g)
	if len(loops) != 2 {
		t.Fatalf("expected 2 loops, got %d", len(loops))
	}
	if loops[0].Nodes[0] != "w" || loops[1].Nodes[0] != "y" {
		t.Errorf("loops must follow canonical order, got %v", loops)
	}
}
