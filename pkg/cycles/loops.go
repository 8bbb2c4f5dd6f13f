// Package cycles detects feedback loops in concept graphs. Loops are
// expected and legal in fuzzy cognitive maps; this package only reports
// them, it never rejects a cyclic graph.
package cycles

import (
	"sort"

	"github.com/mettamodeler/mettasim/pkg/model"
)

// FeedbackLoop is a set of concepts that influence each other in a closed
// circuit. A single node with a self-referencing edge forms a loop of one.
type FeedbackLoop struct {
	Nodes []string `json:"nodes"`
}

// FindFeedbackLoops returns every feedback loop in the graph: strongly
// connected components of two or more nodes, plus one-node loops formed by
// self-referencing edges. Loop members and loop order follow the graph's
// canonical node order, so results are deterministic.
func FindFeedbackLoops(g *model.Graph) []FeedbackLoop {
	var loops []FeedbackLoop

	tarjan := newTarjanSCC(g.Directed())
	for _, scc := range tarjan.components(int64(g.NodeCount())) {
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		ids := make([]string, 0, len(scc))
		for _, gid := range scc {
			ids = append(ids, g.IDByIndex(int(gid)))
		}
		loops = append(loops, FeedbackLoop{Nodes: ids})
	}

	for _, e := range g.Edges() {
		if e.Source == e.Target {
			loops = append(loops, FeedbackLoop{Nodes: []string{e.Source}})
		}
	}

	sort.Slice(loops, func(i, j int) bool {
		a, _ := g.Index(loops[i].Nodes[0])
		b, _ := g.Index(loops[j].Nodes[0])
		return a < b
	})
	return loops
}

// HasCycle reports whether the graph contains any feedback loop.
func HasCycle(g *model.Graph) bool {
	return len(FindFeedbackLoops(g)) > 0
}
