package export

import (
	"fmt"
	"strings"

	"github.com/mettamodeler/mettasim/pkg/model"
	"github.com/mettamodeler/mettasim/pkg/sim"
)

// Notebook payload shapes. The embedded Python reads node["data"]["value"]
// and edge["data"]["weight"], so the nested editor shape is emitted here
// regardless of how the request arrived.
type nbNode struct {
	ID   string     `json:"id"`
	Data nbNodeData `json:"data"`
}

type nbNodeData struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

type nbEdge struct {
	Source string     `json:"source"`
	Target string     `json:"target"`
	Data   nbEdgeData `json:"data"`
}

type nbEdgeData struct {
	Weight float64 `json:"weight"`
}

// SimulationNotebook builds the full analysis notebook for one run: model
// data, network plot, convergence time series, final state analysis,
// centrality measures and the adjacency matrix heatmap.
func SimulationNotebook(g *model.Graph, result *sim.Result) (*Notebook, error) {
	nodes := make([]nbNode, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		nodes = append(nodes, nbNode{
			ID: n.ID,
			Data: nbNodeData{
				Label: n.Label,
				Value: n.Value,
				Type:  string(n.Type),
			},
		})
	}
	edges := make([]nbEdge, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, nbEdge{
			Source: e.Source,
			Target: e.Target,
			Data:   nbEdgeData{Weight: e.Weight},
		})
	}

	nodesJSON, err := ToJSON(nodes)
	if err != nil {
		return nil, fmt.Errorf("encode nodes: %w", err)
	}
	edgesJSON, err := ToJSON(edges)
	if err != nil {
		return nil, fmt.Errorf("encode edges: %w", err)
	}
	seriesJSON, err := ToJSON(result.TimeSeries)
	if err != nil {
		return nil, fmt.Errorf("encode time series: %w", err)
	}
	finalJSON, err := ToJSON(result.FinalValues())
	if err != nil {
		return nil, fmt.Errorf("encode final state: %w", err)
	}

	nb := newNotebookShell()
	nb.Cells = append(nb.Cells,
		markdownCell("# FCM Simulation Analysis"),
		markdownCell(
			"This notebook contains an analysis of a Fuzzy Cognitive Map (FCM) simulation.",
			"",
			"## Model Description",
			"",
			"The model consists of nodes (concepts) connected by weighted edges (causal relationships).",
		),
		codeCell(
			"import numpy as np",
			"import pandas as pd",
			"import matplotlib.pyplot as plt",
			"import networkx as nx",
			"import seaborn as sns",
			"",
			"# Set plot style",
			"plt.style.use('ggplot')",
			"sns.set(style=\"darkgrid\")",
		),
		modelDataCell(nodesJSON, edgesJSON),
		networkPlotCell(),
		timeSeriesCell(seriesJSON, finalJSON, result),
		finalStateCell(),
		networkAnalysisCell(),
		adjacencyMatrixCell(),
	)
	return nb, nil
}

func modelDataCell(nodesJSON, edgesJSON []byte) Cell {
	lines := []string{"# Model data"}
	lines = append(lines, literalLines("nodes = ", nodesJSON)...)
	lines = append(lines, literalLines("edges = ", edgesJSON)...)
	lines = append(lines,
		"",
		"# Create node information dataframe",
		"node_df = pd.DataFrame([",
		"    {\"id\": node[\"id\"],",
		"     \"label\": node[\"data\"].get(\"label\", \"\"),",
		"     \"initial_value\": node[\"data\"][\"value\"],",
		"     \"type\": node[\"data\"].get(\"type\", \"regular\")",
		"    } for node in nodes",
		"])",
		"",
		"print(\"Node Information:\")",
		"display(node_df)",
	)
	return codeCell(lines...)
}

func networkPlotCell() Cell {
	return codeCell(
		"# Create a directed graph",
		"G = nx.DiGraph()",
		"",
		"for node in nodes:",
		"    G.add_node(node[\"id\"], label=node[\"data\"].get(\"label\", \"\"), value=node[\"data\"][\"value\"])",
		"",
		"for edge in edges:",
		"    G.add_edge(edge[\"source\"], edge[\"target\"], weight=edge[\"data\"][\"weight\"])",
		"",
		"# Plot the network",
		"plt.figure(figsize=(12, 10))",
		"pos = nx.spring_layout(G, seed=42)",
		"",
		"labels = {node[\"id\"]: node[\"data\"].get(\"label\", node[\"id\"]) for node in nodes}",
		"edge_weights = [G[u][v][\"weight\"] for u, v in G.edges()]",
		"",
		"# Red for positive influence, blue for negative",
		"edge_colors = [\"red\" if w > 0 else \"blue\" for w in edge_weights]",
		"",
		"nx.draw_networkx_nodes(G, pos, node_size=700, alpha=0.8)",
		"nx.draw_networkx_labels(G, pos, labels=labels, font_size=12)",
		"nx.draw_networkx_edges(",
		"    G, pos, width=2, alpha=0.7,",
		"    edge_color=edge_colors,",
		"    connectionstyle=\"arc3,rad=0.1\",",
		"    arrowsize=20",
		")",
		"",
		"edge_labels = {(u, v): f\"{G[u][v]['weight']:.2f}\" for u, v in G.edges()}",
		"nx.draw_networkx_edge_labels(G, pos, edge_labels=edge_labels, font_size=10)",
		"",
		"plt.title(\"Fuzzy Cognitive Map Network\", fontsize=16)",
		"plt.axis(\"off\")",
		"plt.tight_layout()",
		"plt.show()",
	)
}

func timeSeriesCell(seriesJSON, finalJSON []byte, result *sim.Result) Cell {
	lines := []string{"# Simulation results"}
	lines = append(lines, literalLines("time_series = ", seriesJSON)...)
	lines = append(lines, literalLines("final_state = ", finalJSON)...)
	lines = append(lines,
		fmt.Sprintf("iterations = %d", result.Iterations),
		fmt.Sprintf("converged = %s", pyBool(result.Converged)),
		"",
		"# Convert time series to DataFrame",
		"df = pd.DataFrame(time_series)",
		"",
		"# Plot time series",
		"plt.figure(figsize=(12, 6))",
		"for column in df.columns:",
		"    node_label = next((node[\"data\"].get(\"label\", column) for node in nodes if node[\"id\"] == column), column)",
		"    plt.plot(df[column], marker='o', markersize=4, label=node_label)",
		"",
		"plt.title(f\"FCM Simulation Convergence (Iterations: {iterations}, Converged: {converged})\", fontsize=15)",
		"plt.xlabel(\"Iteration\", fontsize=12)",
		"plt.ylabel(\"Node Value\", fontsize=12)",
		"plt.grid(True, alpha=0.3)",
		"plt.legend(bbox_to_anchor=(1.05, 1), loc='upper left')",
		"plt.tight_layout()",
		"plt.show()",
	)
	return codeCell(lines...)
}

func finalStateCell() Cell {
	return codeCell(
		"# Analyze final state",
		"final_df = pd.DataFrame([",
		"    {\"id\": node_id,",
		"     \"label\": next((node[\"data\"].get(\"label\", node_id) for node in nodes if node[\"id\"] == node_id), node_id),",
		"     \"initial_value\": next((node[\"data\"][\"value\"] for node in nodes if node[\"id\"] == node_id), 0),",
		"     \"final_value\": final_state[node_id],",
		"     \"change\": final_state[node_id] - next((node[\"data\"][\"value\"] for node in nodes if node[\"id\"] == node_id), 0)",
		"    } for node_id in final_state.keys()",
		"])",
		"",
		"# Sort by absolute change",
		"final_df[\"abs_change\"] = final_df[\"change\"].abs()",
		"final_df = final_df.sort_values(\"abs_change\", ascending=False)",
		"final_df = final_df.drop(\"abs_change\", axis=1)",
		"",
		"print(\"Final State Analysis:\")",
		"display(final_df)",
		"",
		"# Plot initial vs final values",
		"plt.figure(figsize=(10, 6))",
		"",
		"x = range(len(final_df))",
		"width = 0.35",
		"",
		"plt.bar(x, final_df[\"initial_value\"], width, label=\"Initial Value\", alpha=0.7)",
		"plt.bar([i + width for i in x], final_df[\"final_value\"], width, label=\"Final Value\", alpha=0.7)",
		"",
		"plt.xlabel(\"Node\", fontsize=12)",
		"plt.ylabel(\"Value\", fontsize=12)",
		"plt.title(\"Initial vs Final Node Values\", fontsize=15)",
		"plt.xticks([i + width/2 for i in x], final_df[\"label\"], rotation=45, ha=\"right\")",
		"plt.legend()",
		"plt.tight_layout()",
		"plt.show()",
	)
}

func networkAnalysisCell() Cell {
	return codeCell(
		"# Network Analysis",
		"print(\"Network Statistics:\")",
		"print(f\"Number of nodes: {G.number_of_nodes()}\")",
		"print(f\"Number of edges: {G.number_of_edges()}\")",
		"print(f\"Network density: {nx.density(G):.4f}\")",
		"",
		"# Calculate centrality measures",
		"degree_centrality = nx.degree_centrality(G)",
		"in_degree_centrality = nx.in_degree_centrality(G)",
		"out_degree_centrality = nx.out_degree_centrality(G)",
		"betweenness_centrality = nx.betweenness_centrality(G)",
		"",
		"centrality_df = pd.DataFrame({",
		"    \"Node\": list(G.nodes()),",
		"    \"Degree\": list(degree_centrality.values()),",
		"    \"In-Degree\": list(in_degree_centrality.values()),",
		"    \"Out-Degree\": list(out_degree_centrality.values()),",
		"    \"Betweenness\": list(betweenness_centrality.values())",
		"})",
		"",
		"centrality_df[\"Label\"] = centrality_df[\"Node\"].apply(",
		"    lambda x: next((node[\"data\"].get(\"label\", x) for node in nodes if node[\"id\"] == x), x)",
		")",
		"",
		"# Sort by degree centrality",
		"centrality_df = centrality_df.sort_values(\"Degree\", ascending=False)",
		"",
		"print(\"\\nCentrality Analysis:\")",
		"display(centrality_df)",
		"",
		"# Plot centrality measures",
		"plt.figure(figsize=(14, 6))",
		"",
		"plt.subplot(1, 2, 1)",
		"plt.bar(centrality_df[\"Label\"], centrality_df[\"In-Degree\"], alpha=0.7, label=\"In-Degree\")",
		"plt.bar(centrality_df[\"Label\"], centrality_df[\"Out-Degree\"], alpha=0.7, label=\"Out-Degree\", bottom=centrality_df[\"In-Degree\"])",
		"plt.xticks(rotation=45, ha=\"right\")",
		"plt.ylabel(\"Centrality\")",
		"plt.title(\"In/Out Degree Centrality\")",
		"plt.legend()",
		"",
		"plt.subplot(1, 2, 2)",
		"plt.bar(centrality_df[\"Label\"], centrality_df[\"Betweenness\"], alpha=0.7, color=\"green\")",
		"plt.xticks(rotation=45, ha=\"right\")",
		"plt.ylabel(\"Centrality\")",
		"plt.title(\"Betweenness Centrality\")",
		"",
		"plt.tight_layout()",
		"plt.show()",
	)
}

func adjacencyMatrixCell() Cell {
	return codeCell(
		"# Create and visualize adjacency matrix",
		"adj_matrix = nx.to_numpy_array(G, nodelist=list(G.nodes()))",
		"",
		"plt.figure(figsize=(10, 8))",
		"sns.heatmap(",
		"    adj_matrix,",
		"    cmap=\"RdBu_r\",",
		"    center=0,",
		"    annot=True,",
		"    fmt=\".2f\",",
		"    xticklabels=[labels[node] for node in G.nodes()],",
		"    yticklabels=[labels[node] for node in G.nodes()],",
		"    cbar_kws={\"label\": \"Edge Weight\"}",
		")",
		"plt.title(\"FCM Adjacency Matrix\", fontsize=15)",
		"plt.tight_layout()",
		"plt.show()",
	)
}

// literalLines renders a Python assignment whose value is a multi-line
// JSON document, one cell line per JSON line.
func literalLines(prefix string, payload []byte) []string {
	parts := strings.Split(string(payload), "\n")
	out := make([]string, len(parts))
	for i, p := range parts {
		if i == 0 {
			out[i] = prefix + p
		} else {
			out[i] = p
		}
	}
	return out
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
