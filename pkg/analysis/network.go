// Package analysis computes structural metrics over concept graphs:
// density, connectivity, feedback loops and node centralities.
package analysis

import (
	"math"

	"github.com/mettamodeler/mettasim/pkg/cycles"
	"github.com/mettamodeler/mettasim/pkg/logging"
	"github.com/mettamodeler/mettasim/pkg/model"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
)

// Centrality holds per-node centrality scores, keyed by node id.
type Centrality struct {
	Degree      map[string]float64 `json:"degree"`
	InDegree    map[string]float64 `json:"inDegree"`
	OutDegree   map[string]float64 `json:"outDegree"`
	Betweenness map[string]float64 `json:"betweenness"`
	Closeness   map[string]float64 `json:"closeness"`
}

// Metrics is the structural summary of one concept graph.
type Metrics struct {
	NodeCount       int                   `json:"nodeCount"`
	EdgeCount       int                   `json:"edgeCount"`
	Density         float64               `json:"density"`
	IsConnected     bool                  `json:"isConnected"`
	HasLoop         bool                  `json:"hasLoop"`
	Centrality      Centrality            `json:"centrality"`
	FeedbackLoops   []cycles.FeedbackLoop `json:"feedbackLoops"`
	AdjacencyMatrix [][]float64           `json:"adjacencyMatrix"`
	NodeIDs         []string              `json:"nodeIds"`
}

// Analyze computes all metrics for the graph. Centrality scores use hop
// counts over edge direction; edge weights play no role in path lengths.
func Analyze(g *model.Graph) *Metrics {
	n := g.NodeCount()
	ids := g.NodeIDs()

	loops := cycles.FindFeedbackLoops(g)

	adj := g.AdjacencyMatrix()
	matrix := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, n)
		for j := 0; j < n; j++ {
			row[j] = adj.At(i, j)
		}
		matrix[i] = row
	}

	m := &Metrics{
		NodeCount:       n,
		EdgeCount:       g.EdgeCount(),
		Density:         density(n, g.EdgeCount()),
		IsConnected:     weaklyConnected(g),
		HasLoop:         len(loops) > 0,
		FeedbackLoops:   loops,
		AdjacencyMatrix: matrix,
		NodeIDs:         ids,
		Centrality: Centrality{
			Degree:      degreeCentrality(g),
			InDegree:    directionalDegreeCentrality(g, g.InDegree),
			OutDegree:   directionalDegreeCentrality(g, g.OutDegree),
			Betweenness: betweennessCentrality(g),
			Closeness:   closenessCentrality(g),
		},
	}

	logging.Debug("graph analyzed",
		"nodes", n,
		"edges", g.EdgeCount(),
		"density", m.Density,
		"loops", len(loops),
	)
	return m
}

// density is the edge count over the number of possible directed edges.
func density(nodes, edges int) float64 {
	if nodes <= 1 || edges == 0 {
		return 0
	}
	return float64(edges) / float64(nodes*(nodes-1))
}

// weaklyConnected reports whether the graph is connected when edge
// direction is ignored.
func weaklyConnected(g *model.Graph) bool {
	n := g.NodeCount()
	if n <= 1 {
		return true
	}

	neighbors := make(map[string][]string, n)
	for _, e := range g.Edges() {
		neighbors[e.Source] = append(neighbors[e.Source], e.Target)
		neighbors[e.Target] = append(neighbors[e.Target], e.Source)
	}

	start := g.NodeIDs()[0]
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range neighbors[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return len(visited) == n
}

// degreeCentrality is (in+out degree) / (n-1). A self-loop contributes to
// both directions. A one-node graph scores 1 by convention.
func degreeCentrality(g *model.Graph) map[string]float64 {
	n := g.NodeCount()
	out := make(map[string]float64, n)
	for _, id := range g.NodeIDs() {
		if n <= 1 {
			out[id] = 1
			continue
		}
		out[id] = float64(g.InDegree(id)+g.OutDegree(id)) / float64(n-1)
	}
	return out
}

func directionalDegreeCentrality(g *model.Graph, degree func(string) int) map[string]float64 {
	n := g.NodeCount()
	out := make(map[string]float64, n)
	for _, id := range g.NodeIDs() {
		if n <= 1 {
			out[id] = 1
			continue
		}
		out[id] = float64(degree(id)) / float64(n-1)
	}
	return out
}

// betweennessCentrality counts shortest paths through each node over
// ordered node pairs, normalized by (n-1)(n-2).
func betweennessCentrality(g *model.Graph) map[string]float64 {
	n := g.NodeCount()
	out := make(map[string]float64, n)
	for _, id := range g.NodeIDs() {
		out[id] = 0
	}
	if n < 3 {
		return out
	}

	scale := 1 / float64((n-1)*(n-2))
	for gid, score := range network.Betweenness(g.Directed()) {
		out[g.IDByIndex(int(gid))] = score * scale
	}
	return out
}

// closenessCentrality scores each node by how near its upstream nodes are:
// for node u with r nodes able to reach it over total distance d,
// the score is (r-1)/(n-1) * (r-1)/d.
func closenessCentrality(g *model.Graph) map[string]float64 {
	n := g.NodeCount()
	out := make(map[string]float64, n)
	ids := g.NodeIDs()
	if n <= 1 {
		for _, id := range ids {
			out[id] = 0
		}
		return out
	}

	paths := path.DijkstraAllPaths(g.Directed())
	for ui, uid := range ids {
		reach := 0
		total := 0.0
		for vi := range ids {
			d := paths.Weight(int64(vi), int64(ui))
			if math.IsInf(d, 1) {
				continue
			}
			reach++
			total += d
		}
		if total > 0 {
			frac := float64(reach-1) / float64(n-1)
			out[uid] = frac * float64(reach-1) / total
		} else {
			out[uid] = 0
		}
	}
	return out
}
